package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/raysh454/compliscan/internal/model"
	"github.com/raysh454/compliscan/internal/store"
)

var t0 = time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "monitor.bolt"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newWebsite(id, url string) *model.Website {
	return &model.Website{
		ID:        id,
		OwnerID:   "acct-1",
		Name:      id,
		URL:       url,
		Interval:  model.Interval5Min,
		IsActive:  true,
		Status:    model.StatusOffline,
		CreatedAt: t0,
		UpdatedAt: t0,
	}
}

func check(id, websiteID string, at time.Time, st model.WebsiteStatus) *model.WebsiteCheck {
	return &model.WebsiteCheck{ID: id, WebsiteID: websiteID, CheckedAt: at, Status: st, ResponseTimeMS: 10}
}

// ─── CRUD ──────────────────────────────────────────────────────────────

func TestCreateWebsite_DuplicatePerOwner(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateWebsite(ctx, newWebsite("w1", "https://a.example/")); err != nil {
		t.Fatalf("CreateWebsite: %v", err)
	}
	if err := s.CreateWebsite(ctx, newWebsite("w2", "https://a.example/")); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	other := newWebsite("w3", "https://a.example/")
	other.OwnerID = "acct-2"
	if err := s.CreateWebsite(ctx, other); err != nil {
		t.Fatalf("other owner should be allowed: %v", err)
	}

	list, _ := s.ListWebsites(ctx, "acct-1")
	if len(list) != 1 || list[0].ID != "w1" {
		t.Fatalf("expected only w1 for acct-1, got %d", len(list))
	}
}

func TestDeleteWebsite_FreesURLAndHistory(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.CreateWebsite(ctx, newWebsite("w1", "https://a.example/"))
	_, _ = s.RecordCheck(ctx, check("c1", "w1", t0, model.StatusOnline), 100)

	if err := s.DeleteWebsite(ctx, "w1"); err != nil {
		t.Fatalf("DeleteWebsite: %v", err)
	}
	if _, err := s.GetWebsite(ctx, "w1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if checks, _ := s.ListChecks(ctx, "w1", 0); len(checks) != 0 {
		t.Fatalf("history should be gone, got %d", len(checks))
	}
	if err := s.CreateWebsite(ctx, newWebsite("w2", "https://a.example/")); err != nil {
		t.Fatalf("url should be reusable after delete: %v", err)
	}
}

// ─── Due & claims ──────────────────────────────────────────────────────

func TestDueAndClaim(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.CreateWebsite(ctx, newWebsite("w1", "https://a.example/"))
	_ = s.CreateWebsite(ctx, newWebsite("w2", "https://b.example/"))
	_ = s.CreateWebsite(ctx, newWebsite("w3", "https://c.example/"))
	_, _ = s.RecordCheck(ctx, check("c1", "w1", t0.Add(-6*time.Minute), model.StatusOnline), 100)
	_, _ = s.RecordCheck(ctx, check("c2", "w2", t0.Add(-2*time.Minute), model.StatusOnline), 100)
	_ = s.SetWebsiteActive(ctx, "w3", false, t0)

	due, err := s.ListDueWebsites(ctx, t0, 10)
	if err != nil {
		t.Fatalf("ListDueWebsites: %v", err)
	}
	if len(due) != 1 || due[0].ID != "w1" {
		t.Fatalf("expected only w1 due, got %d", len(due))
	}

	if ok, _ := s.ClaimWebsite(ctx, "w1", "a", t0, t0.Add(time.Minute)); !ok {
		t.Fatal("claim should succeed")
	}
	if ok, _ := s.ClaimWebsite(ctx, "w1", "b", t0, t0.Add(time.Minute)); ok {
		t.Fatal("second claim must lose")
	}
	if due, _ := s.ListDueWebsites(ctx, t0, 10); len(due) != 0 {
		t.Fatalf("claimed website must not be listed, got %d", len(due))
	}
	if ok, _ := s.ClaimWebsite(ctx, "w1", "b", t0.Add(time.Minute), t0.Add(2*time.Minute)); !ok {
		t.Fatal("expired lease should be claimable")
	}
	if err := s.ReleaseWebsite(ctx, "w1", "b"); err != nil {
		t.Fatalf("ReleaseWebsite: %v", err)
	}
	got, _ := s.GetWebsite(ctx, "w1")
	if got.ClaimedBy != "" || got.ClaimExpires != nil {
		t.Fatalf("lease not released: %+v", got)
	}
}

// ─── Checks ────────────────────────────────────────────────────────────

func TestRecordCheck_WindowedUptime(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.CreateWebsite(ctx, newWebsite("w1", "https://a.example/"))

	statuses := []model.WebsiteStatus{model.StatusOffline, model.StatusOnline, model.StatusOnline, model.StatusWarning}
	var out *store.CheckOutcome
	for i, st := range statuses {
		var err error
		out, err = s.RecordCheck(ctx, check(string(rune('a'+i)), "w1", t0.Add(time.Duration(i)*time.Minute), st), 3)
		if err != nil {
			t.Fatalf("RecordCheck %d: %v", i, err)
		}
	}

	w := out.Website
	if out.PreviousStatus != model.StatusOnline || out.FirstCheck {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	// Last three: online, online, warning.
	if got := w.Uptime; got < 66.6 || got > 66.7 {
		t.Fatalf("expected ~66.67 uptime, got %v", got)
	}
	if w.TotalChecks != 4 || w.SuccessfulChecks != 2 || w.FailedChecks != 2 {
		t.Fatalf("counters wrong: %+v", w)
	}

	checks, _ := s.ListChecks(ctx, "w1", 2)
	if len(checks) != 2 || checks[0].Status != model.StatusWarning {
		t.Fatalf("expected newest-first, got %d", len(checks))
	}
}
