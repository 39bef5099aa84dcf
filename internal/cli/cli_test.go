package cli_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raysh454/compliscan/internal/cli"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writeConfig points storage at a temp dir and keeps logs quiet.
func writeConfig(t *testing.T, extra string) (cfgPath, dataDir string) {
	t.Helper()
	dir := t.TempDir()
	dataDir = filepath.Join(dir, "data")
	cfgPath = filepath.Join(dir, "compliscan.yaml")
	body := "storage:\n  data_dir: " + dataDir + "\n" + extra + "logging:\n  level: error\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath, dataDir
}

// ─── Scaffolding ───────────────────────────────────────────────────────

func TestVersion(t *testing.T) {
	t.Parallel()

	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, cli.Version) {
		t.Errorf("expected version %q in %q", cli.Version, out)
	}
}

func TestInit_WritesOnceUnlessForced(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "compliscan.yaml")

	if _, err := run(t, "init", "--path", path); err != nil {
		t.Fatalf("init: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read written config: %v", err)
	}
	if !strings.Contains(string(data), "listen_addr") {
		t.Errorf("written config lacks server section:\n%s", data)
	}

	if _, err := run(t, "init", "--path", path); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected already-exists error, got %v", err)
	}
	if _, err := run(t, "init", "--path", path, "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}
}

// ─── next-run ──────────────────────────────────────────────────────────

func TestNextRun_Weekly(t *testing.T) {
	t.Parallel()

	// 2025-06-04 is a Wednesday; Monday is day 1.
	out, err := run(t, "next-run", "--frequency", "weekly", "--time", "09:00", "--day-of-week", "1",
		"--from", "2025-06-04T10:00:00Z", "-n", "2")
	if err != nil {
		t.Fatalf("next-run: %v", err)
	}
	want := "2025-06-09T09:00:00Z\n2025-06-16T09:00:00Z\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestNextRun_MonthlyClampVersusSkip(t *testing.T) {
	t.Parallel()

	args := []string{"next-run", "--frequency", "monthly", "--time", "00:00", "--day-of-month", "31",
		"--from", "2025-01-31T12:00:00Z", "-n", "1"}

	skip, err := run(t, args...)
	if err != nil {
		t.Fatalf("next-run skip: %v", err)
	}
	if skip != "2025-03-31T00:00:00Z\n" {
		t.Errorf("skip: got %q", skip)
	}

	clamp, err := run(t, append(args, "--overflow", "clamp")...)
	if err != nil {
		t.Fatalf("next-run clamp: %v", err)
	}
	if clamp != "2025-02-28T00:00:00Z\n" {
		t.Errorf("clamp: got %q", clamp)
	}
}

func TestNextRun_InvalidRule(t *testing.T) {
	t.Parallel()

	if _, err := run(t, "next-run", "--frequency", "weekly", "--time", "09:00"); err == nil {
		t.Error("expected weekly rule without a day to fail")
	}
	if _, err := run(t, "next-run", "--time", "24:00"); err == nil {
		t.Error("expected invalid time to fail")
	}
	if _, err := run(t, "next-run", "-n", "0"); err == nil {
		t.Error("expected non-positive count to fail")
	}
}

// ─── migrate ───────────────────────────────────────────────────────────

func TestMigrate_CreatesStores(t *testing.T) {
	t.Parallel()
	cfgPath, dataDir := writeConfig(t, "")

	out, err := run(t, "--config", cfgPath, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "compliscan.db")); err != nil {
		t.Errorf("database not created: %v (output %q)", err, out)
	}
	if strings.Contains(out, "Monitor store") {
		t.Errorf("bolt store should not be touched with the sqlite backend: %q", out)
	}
}

func TestMigrate_BoltMonitorBackend(t *testing.T) {
	t.Parallel()
	cfgPath, dataDir := writeConfig(t, "  monitor_backend: bolt\n")

	if _, err := run(t, "--config", cfgPath, "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "monitor.bolt")); err != nil {
		t.Errorf("bolt store not created: %v", err)
	}
}

func TestMissingConfigFile(t *testing.T) {
	t.Parallel()

	if _, err := run(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "migrate"); err == nil {
		t.Error("expected missing explicit config to fail")
	}
}

// ─── probe ─────────────────────────────────────────────────────────────

func TestProbe_Online(t *testing.T) {
	t.Parallel()
	cfgPath, _ := writeConfig(t, "")
	agents := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case agents <- r.Header.Get("User-Agent"):
		default:
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	out, err := run(t, "--config", cfgPath, "probe", ts.URL)
	if err != nil {
		t.Fatalf("probe: %v (output %q)", err, out)
	}
	if !strings.Contains(out, "online") || !strings.Contains(out, "200") {
		t.Errorf("unexpected probe output: %q", out)
	}
	if ua := <-agents; !strings.HasPrefix(ua, "compliscan-monitor") {
		t.Errorf("expected monitor user agent, got %q", ua)
	}
}

func TestProbe_OfflineFails(t *testing.T) {
	t.Parallel()
	cfgPath, _ := writeConfig(t, "")
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	out, err := run(t, "--config", cfgPath, "probe", url, "--timeout", "2s")
	if err == nil {
		t.Fatalf("expected offline probe to fail, output %q", out)
	}
	if !strings.Contains(out, "offline") {
		t.Errorf("unexpected probe output: %q", out)
	}
}
