package demoserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/raysh454/compliscan/internal/logging"
)

// DemoServer serves a small shop whose pages can be switched between a
// non-compliant and a compliant version, plus endpoints that misbehave on
// purpose so the uptime monitor has something to report.
type DemoServer struct {
	cfg      Config
	logger   logging.Logger
	pages    map[string]PageDefinition
	versions map[string]int // path -> current version
	outage   bool
	mu       sync.RWMutex
}

// NewDemoServer creates a new demo server instance.
func NewDemoServer(cfg Config, logger logging.Logger) *DemoServer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.InitialVersion <= 0 {
		cfg.InitialVersion = 1
	}
	pageMap := make(map[string]PageDefinition)
	versions := make(map[string]int)
	for _, p := range GetAllPages() {
		pageMap[p.Path] = p
		versions[p.Path] = cfg.InitialVersion
	}

	return &DemoServer{
		cfg:      cfg,
		logger:   logger.With(logging.Component("demoserver")),
		pages:    pageMap,
		versions: versions,
	}
}

// Handler returns the routed site. Tests mount it on httptest.
func (s *DemoServer) Handler() http.Handler {
	r := chi.NewRouter()

	for path := range s.pages {
		r.Get(path, s.pageHandler(path))
	}

	r.Get("/status/{code}", s.statusHandler)
	r.Get("/slow", s.slowHandler)

	r.Route("/demo", func(r chi.Router) {
		r.Get("/control", s.controlPanelHandler)
		r.Post("/set-version", s.setVersionHandler)
		r.Get("/get-versions", s.getVersionsHandler)
		r.Post("/bump-all", s.bumpAllVersionsHandler)
		r.Post("/reset", s.resetVersionsHandler)
		r.Post("/outage", s.outageHandler)
	})

	r.Get("/static/*", s.staticHandler)
	return r
}

// Start listens on the configured port until ctx is cancelled.
func (s *DemoServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("demo server listening",
			logging.Field{Key: "addr", Value: srv.Addr},
			logging.Field{Key: "control_panel", Value: fmt.Sprintf("http://localhost:%d/demo/control", s.cfg.Port)})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// SetVersion switches one page; unknown paths are ignored.
func (s *DemoServer) SetVersion(path string, version int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[path]; !ok {
		return false
	}
	s.versions[path] = version
	return true
}

// SetAll switches every page to version.
func (s *DemoServer) SetAll(version int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path := range s.versions {
		s.versions[path] = version
	}
}

// SetOutage makes every page answer 503 while on.
func (s *DemoServer) SetOutage(on bool) {
	s.mu.Lock()
	s.outage = on
	s.mu.Unlock()
}

// pageHandler returns a handler for a specific page path.
func (s *DemoServer) pageHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		pageDef, ok := s.pages[path]
		version := s.versions[path]
		outage := s.outage
		s.mu.RUnlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		if outage {
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}

		// Fall back to the closest lower version.
		pageVersion, ok := pageDef.Versions[version]
		for v := version - 1; !ok && v >= 1; v-- {
			pageVersion, ok = pageDef.Versions[v]
		}

		for k, v := range pageVersion.Headers {
			w.Header().Set(k, v)
		}
		for _, c := range pageVersion.Cookies {
			cookie := &http.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Path:     c.Path,
				HttpOnly: c.HttpOnly,
				Secure:   c.Secure,
			}
			switch c.SameSite {
			case "Strict":
				cookie.SameSite = http.SameSiteStrictMode
			case "Lax":
				cookie.SameSite = http.SameSiteLaxMode
			case "None":
				cookie.SameSite = http.SameSiteNoneMode
			}
			http.SetCookie(w, cookie)
		}

		contentType := pageVersion.ContentType
		if contentType == "" {
			contentType = "text/html; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(pageVersion.HTML))
	}
}

// statusHandler answers with the status code in the path.
func (s *DemoServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(chi.URLParam(r, "code"))
	if err != nil || code < 200 || code > 599 {
		http.Error(w, "Invalid status code", http.StatusBadRequest)
		return
	}
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, "status %d\n", code)
}

func (s *DemoServer) slowHandler(w http.ResponseWriter, r *http.Request) {
	select {
	case <-time.After(s.cfg.SlowDelay):
	case <-r.Context().Done():
		return
	}
	_, _ = w.Write([]byte("finally\n"))
}

// staticHandler serves placeholder static files.
func (s *DemoServer) staticHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	_, _ = w.Write([]byte(`// Demo static file: ` + r.URL.Path + "\n"))
}

// controlPanelHandler serves the control panel for version management.
func (s *DemoServer) controlPanelHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := struct {
		Pages    map[string]PageDefinition
		Versions map[string]int
		Outage   bool
	}{
		Pages:    s.pages,
		Versions: s.versions,
		Outage:   s.outage,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = controlPanel.Execute(w, data)
}

func (s *DemoServer) setVersionHandler(w http.ResponseWriter, r *http.Request) {
	path := r.FormValue("path")
	version, err := strconv.Atoi(r.FormValue("version"))
	if err != nil {
		http.Error(w, "Invalid version number", http.StatusBadRequest)
		return
	}
	if !s.SetVersion(path, version) {
		http.Error(w, "Unknown page", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"success": true, "path": path, "version": version})
}

// PageInfo describes one page for /demo/get-versions.
type PageInfo struct {
	Path              string `json:"path"`
	Description       string `json:"description"`
	CurrentVersion    int    `json:"current_version"`
	AvailableVersions []int  `json:"available_versions"`
}

func (s *DemoServer) getVersionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pages := make([]PageInfo, 0, len(s.pages))
	for path, pageDef := range s.pages {
		var versions []int
		for v := range pageDef.Versions {
			versions = append(versions, v)
		}
		sort.Ints(versions)
		pages = append(pages, PageInfo{
			Path:              path,
			Description:       pageDef.Description,
			CurrentVersion:    s.versions[path],
			AvailableVersions: versions,
		})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Path < pages[j].Path })
	writeJSON(w, pages)
}

// bumpAllVersionsHandler increments every page, capped at its latest version.
func (s *DemoServer) bumpAllVersionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	for path := range s.versions {
		maxV := 1
		for v := range s.pages[path].Versions {
			maxV = max(maxV, v)
		}
		s.versions[path] = min(s.versions[path]+1, maxV)
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{"success": true, "message": "All versions bumped"})
}

func (s *DemoServer) resetVersionsHandler(w http.ResponseWriter, r *http.Request) {
	s.SetAll(1)
	writeJSON(w, map[string]any{"success": true, "message": "All versions reset to 1"})
}

// outageHandler toggles the outage unless "on" is given explicitly.
func (s *DemoServer) outageHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	on := !s.outage
	if raw := r.FormValue("on"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.mu.Unlock()
			http.Error(w, "Invalid on value", http.StatusBadRequest)
			return
		}
		on = v
	}
	s.outage = on
	s.mu.Unlock()

	s.logger.Info("outage toggled", logging.Field{Key: "outage", Value: on})
	writeJSON(w, map[string]any{"success": true, "outage": on})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

var controlPanel = template.Must(template.New("control").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <title>Demo Shop Control Panel</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 960px; margin: 0 auto; padding: 20px; }
        .page-card { border: 1px solid #ddd; border-radius: 6px; padding: 12px; margin: 10px 0; }
        .active { background: #007bff; color: white; }
    </style>
</head>
<body>
    <h1>Demo Shop Control Panel</h1>
    <p>Version 1 of each page is non-compliant, version 2 is compliant. Scan the site, switch versions, scan again and compare.</p>
    <p>Outage: <strong>{{if .Outage}}on{{else}}off{{end}}</strong>
        <button onclick="post('/demo/outage', '')">Toggle outage</button></p>
    <p><button onclick="post('/demo/bump-all', '')">Bump all</button>
        <button onclick="post('/demo/reset', '')">Reset all to v1</button></p>
    {{range $path, $page := .Pages}}
    <div class="page-card">
        <a href="{{$path}}">{{$path}}</a> {{$page.Description}}
        {{range $v, $_ := $page.Versions}}
        <button class="{{if eq (index $.Versions $path) $v}}active{{end}}"
                onclick="post('/demo/set-version', 'path={{$path}}&version={{$v}}')">v{{$v}}</button>
        {{end}}
    </div>
    {{end}}
    <script>
        function post(url, body) {
            fetch(url, {method: 'POST', headers: {'Content-Type': 'application/x-www-form-urlencoded'}, body: body})
                .then(() => location.reload());
        }
    </script>
</body>
</html>`))
