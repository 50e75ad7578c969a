package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/quench-lab/sweep-core/internal/run"
)

// createTestRun posts a valid two-step run and returns its ID.
func createTestRun(t *testing.T, env *testEnv, token string) string {
	t.Helper()

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/runs", token, map[string]any{
		"name": "bench sweep",
		"sweep": map[string]any{
			"variable": "a", "start": 1, "end": 2, "step-width": 1,
		},
		"base": map[string]any{"b": 0},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	var created run.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding created run: %v", err)
	}
	if created.ID == "" || created.Status != run.StatusPending || created.TotalSteps != 2 {
		t.Fatalf("created run = %+v, want pending with 2 steps", created)
	}
	return created.ID
}

// awaitRunStatus polls the run until it reaches a terminal status.
func awaitRunStatus(t *testing.T, env *testEnv, token, id string) run.Run {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec := doJSON(t, env.router, http.MethodGet, "/api/v1/runs/"+id, token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("get status = %d, want 200", rec.Code)
		}
		var r run.Run
		if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
			t.Fatalf("decoding run: %v", err)
		}
		if r.Status.Terminal() {
			return r
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("run did not reach a terminal status")
	return run.Run{}
}

func TestCreateRun_StrictRejectsOutOfBounds(t *testing.T) {
	env := setupTestServer(t)
	token := loginToken(t, env.router)

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/runs", token, map[string]any{
		"name": "bad sweep",
		"sweep": map[string]any{
			"variable": "a", "start": -5, "end": 2, "step-width": 1,
		},
		"base": map[string]any{"b": 0},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (body %s)", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	problem, _ := body["problem"].(map[string]any) //nolint:errcheck // asserted below
	if problem == nil || problem["kind"] != "out_of_bounds" {
		t.Errorf("problem = %v, want out_of_bounds", body["problem"])
	}

	// Nothing persisted.
	list := doJSON(t, env.router, http.MethodGet, "/api/v1/runs", token, nil)
	listBody := decodeBody(t, list)
	if listBody["count"] != float64(0) {
		t.Errorf("run count after rejection = %v, want 0", listBody["count"])
	}
}

func TestRunLifecycle(t *testing.T) {
	env := setupTestServer(t)
	token := loginToken(t, env.router)

	id := createTestRun(t, env, token)

	// Start is asynchronous.
	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/runs/"+id+"/start", token, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}

	final := awaitRunStatus(t, env, token, id)
	if final.Status != run.StatusCompleted {
		t.Fatalf("final status = %s, want completed (error %v)", final.Status, final.Error)
	}
	if final.CompletedSteps != 2 {
		t.Errorf("CompletedSteps = %d, want 2", final.CompletedSteps)
	}

	// Simulator ends on the last set-points.
	if got, ok := env.simulator.Value("a"); !ok || got != 2 {
		t.Errorf("simulator a = %v, want 2", got)
	}

	// Captures are listed in step order.
	rec = doJSON(t, env.router, http.MethodGet, "/api/v1/runs/"+id+"/captures", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("captures status = %d, want 200", rec.Code)
	}
	var captures struct {
		Captures []run.Capture `json:"captures"`
		Count    int           `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &captures); err != nil {
		t.Fatalf("decoding captures: %v", err)
	}
	if captures.Count != 2 {
		t.Fatalf("capture count = %d, want 2", captures.Count)
	}
	if captures.Captures[0].StepIndex != 0 || captures.Captures[0].Step["a"] != 1 {
		t.Errorf("first capture = %+v, want step 0 with a=1", captures.Captures[0])
	}

	// A completed run can be deleted.
	rec = doJSON(t, env.router, http.MethodDelete, "/api/v1/runs/"+id, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, env.router, http.MethodGet, "/api/v1/runs/"+id, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", rec.Code)
	}
}

func TestStartRun_NotFound(t *testing.T) {
	env := setupTestServer(t)
	token := loginToken(t, env.router)

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/runs/missing/start", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestStartRun_AlreadyTerminal(t *testing.T) {
	env := setupTestServer(t)
	token := loginToken(t, env.router)

	id := createTestRun(t, env, token)
	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/runs/"+id+"/start", token, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, want 202", rec.Code)
	}
	awaitRunStatus(t, env, token, id)

	rec = doJSON(t, env.router, http.MethodPost, "/api/v1/runs/"+id+"/start", token, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("restart status = %d, want 409 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestStopRun_NotActive(t *testing.T) {
	env := setupTestServer(t)
	token := loginToken(t, env.router)

	id := createTestRun(t, env, token)

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/runs/"+id+"/stop", token, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestListRuns_StatusFilter(t *testing.T) {
	env := setupTestServer(t)
	token := loginToken(t, env.router)

	createTestRun(t, env, token)

	rec := doJSON(t, env.router, http.MethodGet, "/api/v1/runs?status=pending", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["count"] != float64(1) {
		t.Errorf("pending count = %v, want 1", body["count"])
	}

	rec = doJSON(t, env.router, http.MethodGet, "/api/v1/runs?status=bogus", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus status filter = %d, want 400", rec.Code)
	}
}

func TestCreateRun_AuditTrail(t *testing.T) {
	env := setupTestServer(t)
	token := loginToken(t, env.router)

	id := createTestRun(t, env, token)

	rec := doJSON(t, env.router, http.MethodGet, "/api/v1/audit?entity_type=run", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit status = %d, want 200", rec.Code)
	}

	var resp struct {
		Logs []struct {
			Action   string `json:"action"`
			EntityID string `json:"entity_id"`
			UserID   string `json:"user_id"`
		} `json:"logs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding audit response: %v", err)
	}
	if len(resp.Logs) != 1 {
		t.Fatalf("audit log count = %d, want 1", len(resp.Logs))
	}
	if resp.Logs[0].Action != "create" || resp.Logs[0].EntityID != id || resp.Logs[0].UserID != testOperator {
		t.Errorf("audit entry = %+v, want create/%s/%s", resp.Logs[0], id, testOperator)
	}
}
