package api

import (
	"encoding/json"
	"net/http"

	"github.com/quench-lab/sweep-core/internal/sweep"
)

// Schedule paging limits.
const (
	defaultScheduleLimit = 100
	maxScheduleLimit     = 1000
)

// sweepRequest is the request body for sweep preview and schedule paging.
type sweepRequest struct {
	Sweep *sweep.RawSeries `json:"sweep"`
	Base  map[string]any   `json:"base"`

	// Offset and Limit page the schedule; ignored by preview.
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// previewResponse is the response body for POST /sweep/preview.
type previewResponse struct {
	Series     *sweep.Series    `json:"series"`
	Base       sweep.Step       `json:"base"`
	Problems   []*sweep.Problem `json:"problems"`
	TotalSteps int              `json:"total_steps"`
}

// scheduleStep is one addressed step in a schedule page.
type scheduleStep struct {
	Index  int        `json:"index"`
	Values sweep.Step `json:"values"`
}

// handleSweepPreview normalises a raw sweep declaration in lenient mode
// and returns the resolved tree, the substitutions that were made, and
// the total step count. The declaration is not persisted.
func (s *Server) handleSweepPreview(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	res, err := s.normalizer.Normalize(req.Sweep, req.Base, sweep.ModeLenient)
	if err != nil {
		// Lenient normalisation only fails when the top-level variable
		// cannot be resolved at all; the collected problems explain why.
		writeJSON(w, http.StatusUnprocessableEntity, previewResponse{
			Problems: nonNilProblems(res.Problems),
		})
		return
	}

	seq := sweep.NewStepSequence(res.Series, res.Base)

	writeJSON(w, http.StatusOK, previewResponse{
		Series:     res.Series,
		Base:       res.Base,
		Problems:   nonNilProblems(res.Problems),
		TotalSteps: seq.Len(),
	})
}

// handleSweepSchedule normalises a raw sweep declaration in lenient mode
// and returns one page of the resulting schedule, addressed by step index.
func (s *Server) handleSweepSchedule(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Offset < 0 {
		writeBadRequest(w, "offset must not be negative")
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultScheduleLimit
	}
	if limit > maxScheduleLimit {
		limit = maxScheduleLimit
	}

	res, err := s.normalizer.Normalize(req.Sweep, req.Base, sweep.ModeLenient)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, previewResponse{
			Problems: nonNilProblems(res.Problems),
		})
		return
	}

	seq := sweep.NewStepSequence(res.Series, res.Base)
	total := seq.Len()

	steps := make([]scheduleStep, 0, limit)
	for i := req.Offset; i < total && len(steps) < limit; i++ {
		step, err := seq.StepAt(i)
		if err != nil {
			writeInternalError(w, "schedule indexing failed")
			return
		}
		steps = append(steps, scheduleStep{Index: i, Values: step})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"steps":       steps,
		"total_steps": total,
		"offset":      req.Offset,
		"limit":       limit,
		"problems":    nonNilProblems(res.Problems),
	})
}

// nonNilProblems returns an empty slice instead of nil so the JSON field
// encodes as [] rather than null.
func nonNilProblems(problems []*sweep.Problem) []*sweep.Problem {
	if problems == nil {
		return []*sweep.Problem{}
	}
	return problems
}
