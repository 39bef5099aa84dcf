package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/raysh454/compliscan/internal/app"
	"github.com/raysh454/compliscan/internal/apperr"
	"github.com/raysh454/compliscan/internal/events"
	"github.com/raysh454/compliscan/internal/logging"
	_ "github.com/raysh454/compliscan/internal/server/docs" // registers the swagger spec
)

// AccountHeader identifies the caller. Every record is scoped to it.
const AccountHeader = "X-Account-ID"

type accountKey struct{}

// Server is the HTTP + WebSocket API surface for compliscan.
type Server struct {
	cfg          Config
	orchestrator *app.Orchestrator
	hub          *events.Hub
	router       chi.Router
	upgrader     websocket.Upgrader
	logger       logging.Logger
}

// NewServer wires the routes onto an already built Orchestrator. A nil hub
// disables /ws/events.
func NewServer(cfg Config, orch *app.Orchestrator, hub *events.Hub) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}

	s := &Server{
		cfg:          cfg,
		orchestrator: orch,
		hub:          hub,
		router:       chi.NewRouter(),
		logger:       logger.With(logging.Component("server")),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return cfg.CORSOrigin == "*" || r.Header.Get("Origin") == cfg.CORSOrigin
			},
		},
	}
	s.routes()
	return s
}

// Orchestrator returns the underlying orchestrator for advanced use (tests, etc.).
func (s *Server) Orchestrator() *app.Orchestrator {
	return s.orchestrator
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Group(func(r chi.Router) {
		r.Use(s.accountMiddleware)

		// Targets
		r.Post("/urls", s.handleCreateTarget)
		r.Get("/urls", s.handleListTargets)
		r.Get("/urls/{urlID}", s.handleGetTarget)

		// Scans
		r.Post("/urls/{urlID}/scans", s.handleStartScan)
		r.Get("/urls/{urlID}/scans", s.handleListScans)
		r.Get("/scans", s.handleRecentScans)
		r.Get("/scans/{scanID}", s.handleGetScan)
		r.Post("/scans/{scanID}/cancel", s.handleCancelScan)
		r.Get("/scans/{scanID}/compare", s.handleCompareScan)

		// Scheduled scans
		r.Post("/scheduled-scans", s.handleCreateSchedule)
		r.Get("/scheduled-scans", s.handleListSchedules)
		r.Get("/scheduled-scans/{id}", s.handleGetSchedule)
		r.Put("/scheduled-scans/{id}", s.handleUpdateSchedule)
		r.Delete("/scheduled-scans/{id}", s.handleDeleteSchedule)
		r.Patch("/scheduled-scans/{id}/toggle", s.handleToggleSchedule)
		r.Get("/scheduled-scans/{id}/preview", s.handlePreviewSchedule)

		// Websites
		r.Post("/websites", s.handleCreateWebsite)
		r.Get("/websites", s.handleListWebsites)
		r.Get("/websites/stats", s.handleMonitorStats)
		r.Get("/websites/{id}", s.handleGetWebsite)
		r.Delete("/websites/{id}", s.handleDeleteWebsite)
		r.Patch("/websites/{id}/toggle", s.handleToggleWebsite)
		r.Post("/websites/{id}/check", s.handleCheckWebsite)
		r.Get("/websites/{id}/checks", s.handleListChecks)

		// Event stream
		r.Get("/ws/events", s.handleEventsWS)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.CORSOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+AccountHeader)
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// accountMiddleware rejects requests without an account id. Browsers cannot
// set headers on websocket upgrades, so the account query parameter is
// accepted as well.
func (s *Server) accountMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account := r.Header.Get(AccountHeader)
		if account == "" {
			account = r.URL.Query().Get("account")
		}
		if account == "" {
			s.writeError(w, r, apperr.Unauthorized("missing "+AccountHeader+" header"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey{}, account)))
	})
}

func accountOf(r *http.Request) string {
	v, _ := r.Context().Value(accountKey{}).(string)
	return v
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.router.ServeHTTP(w, r)
	s.logger.Debug("http_request",
		logging.Field{Key: "method", Value: r.Method},
		logging.Field{Key: "path", Value: r.URL.Path},
		logging.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()})
}

// HTTPServer creates an *http.Server ready to ListenAndServe. WriteTimeout
// stays zero when unset so the event stream is not cut.
func (s *Server) HTTPServer() *http.Server {
	readTimeout := s.cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	return &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps err onto its status code and the uniform error body.
// Internal causes are logged and never sent to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			logging.Field{Key: "method", Value: r.Method},
			logging.Field{Key: "path", Value: r.URL.Path},
			logging.Err(err))
	}
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: string(kind), Message: apperr.Message(err)}})
}

// decodeJSON decodes the request body into v. An empty body is allowed only
// when optional is set.
func decodeJSON(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return nil
		}
		return apperr.Validation("invalid JSON body: %v", err)
	}
	return nil
}

// queryInt parses an optional positive integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperr.Validation("%s must be a non-negative integer", name)
	}
	return v, nil
}
