package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quench-lab/sweep-core/internal/run"
	"github.com/quench-lab/sweep-core/internal/sweep"
)

// createRunRequest is the request body for POST /runs.
type createRunRequest struct {
	Name  string           `json:"name"`
	Sweep *sweep.RawSeries `json:"sweep"`
	Base  map[string]any   `json:"base"`
}

// handleCreateRun normalises a raw sweep declaration in strict mode and
// persists a new pending run. Lenient substitution is only for previews;
// a run rejects the first problem so the instrument never executes a
// schedule the operator did not spell out.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	res, err := s.normalizer.Normalize(req.Sweep, req.Base, sweep.ModeStrict)
	if err != nil {
		var p *sweep.Problem
		if errors.As(err, &p) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"status":  http.StatusUnprocessableEntity,
				"code":    ErrCodeValidation,
				"message": "sweep declaration rejected",
				"problem": p,
			})
			return
		}
		writeBadRequest(w, err.Error())
		return
	}

	created, err := s.engine.Create(r.Context(), req.Name, res.Series, res.Base)
	if err != nil {
		s.logger.Error("run create failed", "error", err)
		writeInternalError(w, "failed to create run")
		return
	}

	s.recordAudit(r.Context(), "create", "run", created.ID, usernameFromContext(r.Context()), map[string]any{
		"name":        created.Name,
		"total_steps": created.TotalSteps,
	})

	writeJSON(w, http.StatusCreated, created)
}

// handleListRuns returns runs newest-first, optionally filtered by status.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 0)

	var (
		runs []run.Run
		err  error
	)
	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		status := run.Status(statusParam)
		if !status.Valid() {
			writeBadRequest(w, "unknown status: "+statusParam)
			return
		}
		runs, err = s.runRepo.ListByStatus(r.Context(), status, limit)
	} else {
		runs, err = s.runRepo.List(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error("run list failed", "error", err)
		writeInternalError(w, "failed to list runs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleGetRun returns a single run by ID.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	found, err := s.runRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, run.ErrNotFound) {
			writeNotFound(w, "run not found")
			return
		}
		s.logger.Error("run fetch failed", "run_id", id, "error", err)
		writeInternalError(w, "failed to fetch run")
		return
	}

	writeJSON(w, http.StatusOK, found)
}

// handleDeleteRun deletes a run and its captures. The active run cannot
// be deleted; stop it first.
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if activeID, ok := s.engine.Active(); ok && activeID == id {
		writeError(w, http.StatusConflict, ErrCodeConflict, "run is active; stop it before deleting")
		return
	}

	if err := s.runRepo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, run.ErrNotFound) {
			writeNotFound(w, "run not found")
			return
		}
		s.logger.Error("run delete failed", "run_id", id, "error", err)
		writeInternalError(w, "failed to delete run")
		return
	}

	s.recordAudit(r.Context(), "delete", "run", id, usernameFromContext(r.Context()), nil)

	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// handleStartRun starts a pending run.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.engine.Start(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, run.ErrNotFound):
			writeNotFound(w, "run not found")
		case errors.Is(err, run.ErrNotPending):
			writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
		case errors.Is(err, run.ErrRunActive):
			writeError(w, http.StatusConflict, ErrCodeConflict, "another run is already active")
		default:
			s.logger.Error("run start failed", "run_id", id, "error", err)
			writeInternalError(w, "failed to start run")
		}
		return
	}

	s.recordAudit(r.Context(), "start", "run", id, usernameFromContext(r.Context()), nil)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id": id,
		"status": string(run.StatusRunning),
	})
}

// handleStopRun stops the run if it is currently executing. Stop blocks
// until the step pipeline has wound down and the instrument is back at
// its base assignment.
func (s *Server) handleStopRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.engine.Stop(id); err != nil {
		if errors.Is(err, run.ErrNotRunning) {
			writeError(w, http.StatusConflict, ErrCodeConflict, "run is not active")
			return
		}
		s.logger.Error("run stop failed", "run_id", id, "error", err)
		writeInternalError(w, "failed to stop run")
		return
	}

	s.recordAudit(r.Context(), "stop", "run", id, usernameFromContext(r.Context()), nil)

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": id,
		"status": string(run.StatusStopped),
	})
}

// handleListCaptures returns the captured frames of a run in step order.
func (s *Server) handleListCaptures(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Confirm the run exists so an unknown ID is a 404, not an empty list.
	if _, err := s.runRepo.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, run.ErrNotFound) {
			writeNotFound(w, "run not found")
			return
		}
		s.logger.Error("run fetch failed", "run_id", id, "error", err)
		writeInternalError(w, "failed to fetch run")
		return
	}

	captures, err := s.runRepo.ListCaptures(r.Context(), id)
	if err != nil {
		s.logger.Error("capture list failed", "run_id", id, "error", err)
		writeInternalError(w, "failed to list captures")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"captures": captures,
		"count":    len(captures),
	})
}

// parseIntQuery reads an integer query parameter, returning the default
// on absence or parse failure.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return v
}
