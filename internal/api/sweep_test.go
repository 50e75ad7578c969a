package api

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestSweepPreview_Defaults(t *testing.T) {
	env := setupTestServer(t)
	token := loginToken(t, env.router)

	// Only the variable is named; start/end/step come from its defaults.
	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/sweep/preview", token, map[string]any{
		"sweep": map[string]any{"variable": "a"},
		"base":  map[string]any{"b": 0},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var resp previewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Series == nil || resp.Series.VariableID != "a" {
		t.Fatalf("series = %+v, want variable a", resp.Series)
	}
	if resp.Series.Start != 1 || resp.Series.End != 3 || resp.Series.Step != 1 {
		t.Errorf("resolved range = %v..%v step %v, want 1..3 step 1",
			resp.Series.Start, resp.Series.End, resp.Series.Step)
	}
	if resp.TotalSteps != 3 {
		t.Errorf("TotalSteps = %d, want 3", resp.TotalSteps)
	}
	if len(resp.Problems) != 0 {
		t.Errorf("problems = %+v, want none", resp.Problems)
	}
}

func TestSweepPreview_SubstitutesUnknownVariable(t *testing.T) {
	env := setupTestServer(t)
	token := loginToken(t, env.router)

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/sweep/preview", token, map[string]any{
		"sweep": map[string]any{"variable": "does-not-exist"},
		"base":  map[string]any{"b": 0},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var resp previewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	// Lenient mode swaps in the first unused declared variable and
	// reports the substitution.
	if resp.Series == nil || resp.Series.VariableID != "a" {
		t.Fatalf("series = %+v, want substituted variable a", resp.Series)
	}
	if len(resp.Problems) == 0 {
		t.Fatal("expected at least one problem for the unknown variable")
	}
}

func TestSweepPreview_InvalidBody(t *testing.T) {
	env := setupTestServer(t)
	token := loginToken(t, env.router)

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/sweep/preview", token, "not an object")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSweepSchedule_Paging(t *testing.T) {
	env := setupTestServer(t)
	token := loginToken(t, env.router)

	body := map[string]any{
		"sweep": map[string]any{
			"variable": "a", "start": 1, "end": 3, "step-width": 1,
			"on-each-point": map[string]any{
				"variable": "b", "start": -1, "end": 1, "step-width": 1,
			},
		},
		"base":   map[string]any{},
		"offset": 4,
		"limit":  3,
	}
	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/sweep/schedule", token, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		Steps      []scheduleStep `json:"steps"`
		TotalSteps int            `json:"total_steps"`
		Offset     int            `json:"offset"`
		Limit      int            `json:"limit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	if resp.TotalSteps != 9 {
		t.Fatalf("TotalSteps = %d, want 9", resp.TotalSteps)
	}
	if len(resp.Steps) != 3 {
		t.Fatalf("page size = %d, want 3", len(resp.Steps))
	}

	// The inner level advances fastest: index 4 is the second point of
	// "a" with the second point of "b".
	first := resp.Steps[0]
	if first.Index != 4 {
		t.Errorf("first index = %d, want 4", first.Index)
	}
	if first.Values["a"] != 2 || first.Values["b"] != 0 {
		t.Errorf("step 4 = %v, want a=2 b=0", first.Values)
	}
}

func TestSweepSchedule_OffsetPastEnd(t *testing.T) {
	env := setupTestServer(t)
	token := loginToken(t, env.router)

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/sweep/schedule", token, map[string]any{
		"sweep":  map[string]any{"variable": "a"},
		"base":   map[string]any{"b": 0},
		"offset": 100,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		Steps      []scheduleStep `json:"steps"`
		TotalSteps int            `json:"total_steps"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Steps) != 0 {
		t.Errorf("steps past end = %d, want 0", len(resp.Steps))
	}
	if resp.TotalSteps != 3 {
		t.Errorf("TotalSteps = %d, want 3", resp.TotalSteps)
	}
}

func TestSweepSchedule_NegativeOffset(t *testing.T) {
	env := setupTestServer(t)
	token := loginToken(t, env.router)

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/sweep/schedule", token, map[string]any{
		"sweep":  map[string]any{"variable": "a"},
		"base":   map[string]any{"b": 0},
		"offset": -1,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
