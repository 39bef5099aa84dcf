package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/raysh454/compliscan/internal/apperr"
	"github.com/raysh454/compliscan/internal/logging"
)

// Targets

func (s *Server) handleCreateTarget(w http.ResponseWriter, r *http.Request) {
	var body CreateTargetRequest
	if err := decodeJSON(r, &body, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.orchestrator.CreateTarget(r.Context(), accountOf(r), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	ts, err := s.orchestrator.ListTargets(r.Context(), accountOf(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	t, err := s.orchestrator.GetTarget(r.Context(), accountOf(r), chi.URLParam(r, "urlID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Scans

// handleStartScan godoc
// @Summary Start a scan
// @Tags scans
// @Param urlID path string true "target id"
// @Param body body StartScanRequest false "categories"
// @Success 201 {object} model.Scan
// @Failure 409 {object} ErrorResponse
// @Router /urls/{urlID}/scans [post]
func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var body StartScanRequest
	if err := decodeJSON(r, &body, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	scan, err := s.orchestrator.StartScan(r.Context(), accountOf(r), chi.URLParam(r, "urlID"), body.ScanOptions)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("started scan", logging.Field{Key: "scan_id", Value: scan.ID})
	writeJSON(w, http.StatusCreated, scan)
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	scans, err := s.orchestrator.ListScans(r.Context(), accountOf(r), chi.URLParam(r, "urlID"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scans)
}

func (s *Server) handleRecentScans(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	scans, err := s.orchestrator.RecentScans(r.Context(), accountOf(r), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scans)
}

// handleGetScan godoc
// @Summary Get a scan
// @Tags scans
// @Param scanID path string true "scan id"
// @Success 200 {object} model.Scan
// @Failure 404 {object} ErrorResponse
// @Router /scans/{scanID} [get]
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	scan, err := s.orchestrator.GetScan(r.Context(), accountOf(r), chi.URLParam(r, "scanID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	scan, err := s.orchestrator.CancelScan(r.Context(), accountOf(r), chi.URLParam(r, "scanID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("cancelled scan", logging.Field{Key: "scan_id", Value: scan.ID})
	writeJSON(w, http.StatusOK, scan)
}

func (s *Server) handleCompareScan(w http.ResponseWriter, r *http.Request) {
	c, err := s.orchestrator.CompareScan(r.Context(), accountOf(r), chi.URLParam(r, "scanID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Scheduled scans

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var body ScheduleRequest
	if err := decodeJSON(r, &body, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	sched, err := s.orchestrator.CreateSchedule(r.Context(), accountOf(r), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sched)
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	ss, err := s.orchestrator.ListSchedules(r.Context(), accountOf(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ss)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	sched, err := s.orchestrator.GetSchedule(r.Context(), accountOf(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var body ScheduleRequest
	if err := decodeJSON(r, &body, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	sched, err := s.orchestrator.UpdateSchedule(r.Context(), accountOf(r), chi.URLParam(r, "id"), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.orchestrator.DeleteSchedule(r.Context(), accountOf(r), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleSchedule(w http.ResponseWriter, r *http.Request) {
	active, err := decodeToggle(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sched, err := s.orchestrator.ToggleSchedule(r.Context(), accountOf(r), chi.URLParam(r, "id"), active)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (s *Server) handlePreviewSchedule(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "n")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	runs, err := s.orchestrator.PreviewSchedule(r.Context(), accountOf(r), chi.URLParam(r, "id"), n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{Runs: runs})
}

// Websites

func (s *Server) handleCreateWebsite(w http.ResponseWriter, r *http.Request) {
	var body CreateWebsiteRequest
	if err := decodeJSON(r, &body, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	site, err := s.orchestrator.CreateWebsite(r.Context(), accountOf(r), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, site)
}

func (s *Server) handleListWebsites(w http.ResponseWriter, r *http.Request) {
	ws, err := s.orchestrator.ListWebsites(r.Context(), accountOf(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleMonitorStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.orchestrator.MonitorStats(r.Context(), accountOf(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetWebsite(w http.ResponseWriter, r *http.Request) {
	site, err := s.orchestrator.GetWebsite(r.Context(), accountOf(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) handleDeleteWebsite(w http.ResponseWriter, r *http.Request) {
	if err := s.orchestrator.DeleteWebsite(r.Context(), accountOf(r), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleWebsite(w http.ResponseWriter, r *http.Request) {
	active, err := decodeToggle(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	site, err := s.orchestrator.ToggleWebsite(r.Context(), accountOf(r), chi.URLParam(r, "id"), active)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) handleCheckWebsite(w http.ResponseWriter, r *http.Request) {
	site, err := s.orchestrator.CheckWebsite(r.Context(), accountOf(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	checks, err := s.orchestrator.ListChecks(r.Context(), accountOf(r), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checks)
}

func decodeToggle(r *http.Request) (bool, error) {
	var body ToggleRequest
	if err := decodeJSON(r, &body, false); err != nil {
		return false, err
	}
	if body.IsActive == nil {
		return false, apperr.Validation("isActive is required")
	}
	return *body.IsActive, nil
}
