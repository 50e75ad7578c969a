package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/quench-lab/sweep-core/internal/audit"
	"github.com/quench-lab/sweep-core/internal/auth"
	"github.com/quench-lab/sweep-core/internal/infrastructure/config"
	"github.com/quench-lab/sweep-core/internal/infrastructure/logging"
	"github.com/quench-lab/sweep-core/internal/instrument"
	"github.com/quench-lab/sweep-core/internal/run"
	"github.com/quench-lab/sweep-core/internal/sweep"
	"github.com/quench-lab/sweep-core/internal/variable"
)

const (
	testOperator = "operator"
	testPassword = "bench-password"
	testSecret   = "0123456789abcdef0123456789abcdef"
)

// fakeRunRepo is an in-memory run.Repository for handler tests.
type fakeRunRepo struct {
	mu       sync.Mutex
	runs     map[string]*run.Run
	captures map[string][]run.Capture
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{
		runs:     make(map[string]*run.Run),
		captures: make(map[string][]run.Capture),
	}
}

func (f *fakeRunRepo) GetByID(_ context.Context, id string) (*run.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[id]
	if !ok {
		return nil, run.ErrNotFound
	}
	return r.Copy(), nil
}

func (f *fakeRunRepo) List(_ context.Context, _ int) ([]run.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []run.Run
	for _, r := range f.runs {
		out = append(out, *r.Copy())
	}
	return out, nil
}

func (f *fakeRunRepo) ListByStatus(_ context.Context, status run.Status, _ int) ([]run.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []run.Run
	for _, r := range f.runs {
		if r.Status == status {
			out = append(out, *r.Copy())
		}
	}
	return out, nil
}

func (f *fakeRunRepo) Create(_ context.Context, r *run.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.runs[r.ID]; ok {
		return run.ErrExists
	}
	f.runs[r.ID] = r.Copy()
	return nil
}

func (f *fakeRunRepo) Update(_ context.Context, r *run.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.runs[r.ID]; !ok {
		return run.ErrNotFound
	}
	f.runs[r.ID] = r.Copy()
	return nil
}

func (f *fakeRunRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.runs[id]; !ok {
		return run.ErrNotFound
	}
	delete(f.runs, id)
	delete(f.captures, id)
	return nil
}

func (f *fakeRunRepo) CreateCapture(_ context.Context, c *run.Capture) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures[c.RunID] = append(f.captures[c.RunID], *c)
	return nil
}

func (f *fakeRunRepo) ListCaptures(_ context.Context, runID string) ([]run.Capture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]run.Capture, len(f.captures[runID]))
	copy(out, f.captures[runID])
	return out, nil
}

func (f *fakeRunRepo) GetCapture(_ context.Context, runID string, stepIndex int) (*run.Capture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.captures[runID] {
		if c.StepIndex == stepIndex {
			capture := c
			return &capture, nil
		}
	}
	return nil, run.ErrCaptureNotFound
}

func (f *fakeRunRepo) FailInterrupted(_ context.Context, _ string) (int, error) {
	return 0, nil
}

// fakeAuditRepo records audit entries in memory.
type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []audit.AuditLog
}

func (f *fakeAuditRepo) Create(_ context.Context, log *audit.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *log)
	return nil
}

func (f *fakeAuditRepo) List(_ context.Context, filter audit.Filter) (*audit.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var logs []audit.AuditLog
	for _, e := range f.entries {
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		logs = append(logs, e)
	}
	return &audit.ListResult{Logs: logs, Total: len(logs)}, nil
}

// testEnv bundles the server under test with the fakes behind it.
type testEnv struct {
	server    *Server
	router    http.Handler
	runRepo   *fakeRunRepo
	auditRepo *fakeAuditRepo
	simulator *instrument.Simulator
}

// setupTestServer builds a Server over in-memory dependencies: two
// registered variables (one calibrated), a simulator instrument, and
// fake repositories.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	registry := variable.NewRegistry()
	minA, maxA := 0.0, 10.0
	startA, endA, stepA := 1.0, 3.0, 1.0
	if err := registry.Add(&variable.Variable{
		ID: "a", Name: "Coarse focus", Unit: "mA",
		Min: &minA, Max: &maxA,
		DefaultStart: &startA, DefaultEnd: &endA, DefaultStep: &stepA,
	}); err != nil {
		t.Fatalf("Add(a) error: %v", err)
	}
	minB, maxB := -5.0, 5.0
	if err := registry.Add(&variable.Variable{
		ID: "b", Name: "Lens current", Unit: "mA",
		Min: &minB, Max: &maxB,
		Calibration: &variable.Calibration{Factor: 2, Name: "Field", Unit: "mT"},
	}); err != nil {
		t.Fatalf("Add(b) error: %v", err)
	}

	sim := instrument.NewSimulator(t.TempDir())
	runRepo := newFakeRunRepo()
	engine := run.NewEngine(runRepo, sim, sim, run.EngineConfig{})
	t.Cleanup(func() { _ = engine.Close() })

	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}

	auditRepo := &fakeAuditRepo{}
	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 8080},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testSecret, AccessTokenTTL: 15},
			Operator: config.OperatorConfig{
				Username:     testOperator,
				PasswordHash: hash,
			},
		},
		Logger:     logging.Default(),
		Registry:   registry,
		Normalizer: sweep.NewNormalizer(registry),
		Engine:     engine,
		RunRepo:    runRepo,
		AuditRepo:  auditRepo,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return &testEnv{
		server:    srv,
		router:    srv.buildRouter(),
		runRepo:   runRepo,
		auditRepo: auditRepo,
		simulator: sim,
	}
}

// doJSON performs a request with an optional JSON body and bearer token.
func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// loginToken logs in as the test operator and returns the access token.
func loginToken(t *testing.T, router http.Handler) string {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": testOperator,
		"password": testPassword,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("login returned empty access token")
	}
	return resp.AccessToken
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response body: %v (body %s)", err, rec.Body.String())
	}
	return body
}

func TestHealth(t *testing.T) {
	env := setupTestServer(t)

	rec := doJSON(t, env.router, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
	if body["run_active"] != false {
		t.Errorf("run_active = %v, want false", body["run_active"])
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := setupTestServer(t)

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": testOperator,
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	// Failed attempts land in the audit trail.
	env.auditRepo.mu.Lock()
	defer env.auditRepo.mu.Unlock()
	if len(env.auditRepo.entries) != 1 || env.auditRepo.entries[0].Action != "login_failed" {
		t.Errorf("audit entries = %+v, want one login_failed", env.auditRepo.entries)
	}
}

func TestLogin_WrongUsername(t *testing.T) {
	env := setupTestServer(t)

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "intruder",
		"password": testPassword,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLogin_InvalidBody(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	env := setupTestServer(t)

	rec := doJSON(t, env.router, http.MethodGet, "/api/v1/variables", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware_BadToken(t *testing.T) {
	env := setupTestServer(t)

	rec := doJSON(t, env.router, http.MethodGet, "/api/v1/variables", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestListVariables(t *testing.T) {
	env := setupTestServer(t)
	token := loginToken(t, env.router)

	rec := doJSON(t, env.router, http.MethodGet, "/api/v1/variables", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		Variables []variableView `json:"variables"`
		Count     int            `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}

	// Declaration order is preserved.
	if resp.Variables[0].ID != "a" || resp.Variables[1].ID != "b" {
		t.Errorf("variable order = %s, %s; want a, b", resp.Variables[0].ID, resp.Variables[1].ID)
	}

	// Calibrated display fields for "b": factor 2, relabelled.
	b := resp.Variables[1]
	if b.DisplayName != "Field" || b.DisplayUnit != "mT" {
		t.Errorf("display labels = %s/%s, want Field/mT", b.DisplayName, b.DisplayUnit)
	}
	if b.DisplayMin == nil || *b.DisplayMin != -10 {
		t.Errorf("DisplayMin = %v, want -10", b.DisplayMin)
	}
	if b.DisplayMax == nil || *b.DisplayMax != 10 {
		t.Errorf("DisplayMax = %v, want 10", b.DisplayMax)
	}

	// Uncalibrated "a" keeps its raw labels.
	a := resp.Variables[0]
	if a.DisplayName != "Coarse focus" || a.DisplayUnit != "mA" {
		t.Errorf("display labels = %s/%s, want raw labels", a.DisplayName, a.DisplayUnit)
	}
}

func TestListAudit(t *testing.T) {
	env := setupTestServer(t)
	token := loginToken(t, env.router)

	rec := doJSON(t, env.router, http.MethodGet, "/api/v1/audit?action=login", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp audit.ListResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Total != 1 || resp.Logs[0].UserID != testOperator {
		t.Errorf("audit result = %+v, want one login entry for %s", resp, testOperator)
	}
}

func TestWSTicket_RequiresAuth(t *testing.T) {
	env := setupTestServer(t)

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/auth/ws-ticket", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestWSTicket_SingleUse(t *testing.T) {
	env := setupTestServer(t)
	token := loginToken(t, env.router)

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/auth/ws-ticket", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	ticket, _ := body["ticket"].(string) //nolint:errcheck // asserted below
	if ticket == "" {
		t.Fatal("empty ticket")
	}

	entry, ok := env.server.tickets.validate(ticket)
	if !ok {
		t.Fatal("first validate failed")
	}
	if entry.username != testOperator {
		t.Errorf("ticket username = %q, want %q", entry.username, testOperator)
	}
	if _, ok := env.server.tickets.validate(ticket); ok {
		t.Error("ticket validated twice; want single use")
	}
}
