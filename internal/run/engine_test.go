package run

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quench-lab/sweep-core/internal/instrument"
	"github.com/quench-lab/sweep-core/internal/sweep"
)

// mockRepository is an in-memory Repository for engine tests.
type mockRepository struct {
	mu       sync.Mutex
	runs     map[string]*Run
	captures map[string][]Capture
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		runs:     make(map[string]*Run),
		captures: make(map[string][]Capture),
	}
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Copy(), nil
}

func (m *mockRepository) List(_ context.Context, _ int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Run
	for _, r := range m.runs {
		out = append(out, *r.Copy())
	}
	return out, nil
}

func (m *mockRepository) ListByStatus(_ context.Context, status Status, _ int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Run
	for _, r := range m.runs {
		if r.Status == status {
			out = append(out, *r.Copy())
		}
	}
	return out, nil
}

func (m *mockRepository) Create(_ context.Context, r *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[r.ID]; ok {
		return ErrExists
	}
	m.runs[r.ID] = r.Copy()
	return nil
}

func (m *mockRepository) Update(_ context.Context, r *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[r.ID]; !ok {
		return ErrNotFound
	}
	m.runs[r.ID] = r.Copy()
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[id]; !ok {
		return ErrNotFound
	}
	delete(m.runs, id)
	delete(m.captures, id)
	return nil
}

func (m *mockRepository) CreateCapture(_ context.Context, c *Capture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captures[c.RunID] = append(m.captures[c.RunID], *c)
	return nil
}

func (m *mockRepository) ListCaptures(_ context.Context, runID string) ([]Capture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Capture, len(m.captures[runID]))
	copy(out, m.captures[runID])
	return out, nil
}

func (m *mockRepository) GetCapture(_ context.Context, runID string, stepIndex int) (*Capture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.captures[runID] {
		if c.StepIndex == stepIndex {
			capture := c
			return &capture, nil
		}
	}
	return nil, ErrCaptureNotFound
}

func (m *mockRepository) FailInterrupted(_ context.Context, message string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.runs {
		if r.Status == StatusRunning {
			r.Status = StatusFailed
			r.Error = &message
			n++
		}
	}
	return n, nil
}

// mockPublisher records published MQTT messages.
type mockPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (m *mockPublisher) Publish(topic string, _ []byte, _ byte, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics = append(m.topics, topic)
	return nil
}

func (m *mockPublisher) count(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, topic := range m.topics {
		if strings.HasPrefix(topic, prefix) {
			n++
		}
	}
	return n
}

// failingController rejects Apply after a number of successes.
type failingController struct {
	mu        sync.Mutex
	succeed   int
	succeeded int
}

func (f *failingController) Apply(_ context.Context, variableID string, _ float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.succeeded >= f.succeed {
		return fmt.Errorf("%w: %s stuck", instrument.ErrRejected, variableID)
	}
	f.succeeded++
	return nil
}

func (f *failingController) Close() error { return nil }

// testSchedule is a 3x2 nested sweep: a over 1..3, b over 4..5.
func testSchedule() (*sweep.Series, sweep.Step) {
	series := &sweep.Series{
		VariableID: "a",
		Start:      1, End: 3, Step: 1,
		Child: &sweep.Series{
			VariableID: "b",
			Start:      4, End: 5, Step: 1,
		},
	}
	base := sweep.Step{"a": 1, "b": 4, "c": 0.5}
	return series, base
}

// awaitTerminal polls until the run reaches a terminal state.
func awaitTerminal(t *testing.T, repo Repository, runID string) *Run {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r, err := repo.GetByID(context.Background(), runID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if r.Status.Terminal() {
			return r
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("run did not reach a terminal state in time")
	return nil
}

func TestEngineCreate(t *testing.T) {
	repo := newMockRepository()
	sim := instrument.NewSimulator("")
	engine := NewEngine(repo, sim, sim, EngineConfig{})

	series, base := testSchedule()
	r, err := engine.Create(context.Background(), "focus sweep", series, base)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if r.ID == "" {
		t.Error("Create() should assign an ID")
	}
	if r.TotalSteps != 6 {
		t.Errorf("TotalSteps = %d, want 6", r.TotalSteps)
	}
	if r.Status != StatusPending {
		t.Errorf("Status = %s, want pending", r.Status)
	}
}

func TestEngineCreate_NoSchedule(t *testing.T) {
	repo := newMockRepository()
	sim := instrument.NewSimulator("")
	engine := NewEngine(repo, sim, sim, EngineConfig{})

	_, err := engine.Create(context.Background(), "empty", nil, sweep.Step{})
	if !errors.Is(err, ErrNoSchedule) {
		t.Errorf("Create() error = %v, want ErrNoSchedule", err)
	}
}

func TestEngineRunToCompletion(t *testing.T) {
	repo := newMockRepository()
	sim := instrument.NewSimulator(t.TempDir())
	publisher := &mockPublisher{}

	engine := NewEngine(repo, sim, sim, EngineConfig{})
	engine.SetPublisher(publisher)

	series, base := testSchedule()
	r, err := engine.Create(context.Background(), "focus sweep", series, base)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := engine.Start(context.Background(), r.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	final := awaitTerminal(t, repo, r.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("status = %s (error %v), want completed", final.Status, final.Error)
	}
	if final.CompletedSteps != 6 {
		t.Errorf("CompletedSteps = %d, want 6", final.CompletedSteps)
	}
	if final.StartedAt == nil || final.FinishedAt == nil {
		t.Error("lifecycle timestamps should be set")
	}

	captures, err := repo.ListCaptures(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("ListCaptures() error = %v", err)
	}
	if len(captures) != 6 {
		t.Fatalf("captures = %d, want 6", len(captures))
	}

	// First step carries the schedule's starting point plus the base-only
	// variable.
	first, err := repo.GetCapture(context.Background(), r.ID, 0)
	if err != nil {
		t.Fatalf("GetCapture(0) error = %v", err)
	}
	want := sweep.Step{"a": 1, "b": 4, "c": 0.5}
	for id, v := range want {
		if first.Step[id] != v {
			t.Errorf("first step %s = %v, want %v", id, first.Step[id], v)
		}
	}

	// Last applied values match the schedule's final point.
	if v, _ := sim.Value("a"); v != 3 {
		t.Errorf("final a = %v, want 3", v)
	}
	if v, _ := sim.Value("b"); v != 5 {
		t.Errorf("final b = %v, want 5", v)
	}
	if v, _ := sim.Value("c"); v != 0.5 {
		t.Errorf("final c = %v, want 0.5", v)
	}

	if sim.Captures() != 6 {
		t.Errorf("simulator captures = %d, want 6", sim.Captures())
	}

	// Status published at start and finish, progress for each step.
	if publisher.count("sweepcore/core/run/"+r.ID+"/status") < 2 {
		t.Error("expected at least two status publishes")
	}
	if publisher.count("sweepcore/core/run/"+r.ID+"/progress") != 6 {
		t.Errorf("progress publishes = %d, want 6",
			publisher.count("sweepcore/core/run/"+r.ID+"/progress"))
	}

	if _, active := engine.Active(); active {
		t.Error("Active() should be false after completion")
	}
}

func TestEngineStart_NotPending(t *testing.T) {
	repo := newMockRepository()
	sim := instrument.NewSimulator("")
	engine := NewEngine(repo, sim, sim, EngineConfig{})

	series, base := testSchedule()
	r, err := engine.Create(context.Background(), "sweep", series, base)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := engine.Start(context.Background(), r.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	awaitTerminal(t, repo, r.ID)

	if err := engine.Start(context.Background(), r.ID); !errors.Is(err, ErrNotPending) {
		t.Errorf("Start() again error = %v, want ErrNotPending", err)
	}
}

func TestEngineStart_NotFound(t *testing.T) {
	repo := newMockRepository()
	sim := instrument.NewSimulator("")
	engine := NewEngine(repo, sim, sim, EngineConfig{})

	if err := engine.Start(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Start() error = %v, want ErrNotFound", err)
	}
}

func TestEngineStart_SecondRunRejected(t *testing.T) {
	repo := newMockRepository()
	sim := instrument.NewSimulator("")
	sim.ApplyDelay = 20 * time.Millisecond
	engine := NewEngine(repo, sim, sim, EngineConfig{})

	series, base := testSchedule()
	first, err := engine.Create(context.Background(), "first", series, base)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second, err := engine.Create(context.Background(), "second", series, base)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := engine.Start(context.Background(), first.ID); err != nil {
		t.Fatalf("Start(first) error = %v", err)
	}
	defer engine.Close()

	if err := engine.Start(context.Background(), second.ID); !errors.Is(err, ErrRunActive) {
		t.Errorf("Start(second) error = %v, want ErrRunActive", err)
	}
}

func TestEngineStop(t *testing.T) {
	repo := newMockRepository()
	sim := instrument.NewSimulator("")
	sim.ApplyDelay = 20 * time.Millisecond
	engine := NewEngine(repo, sim, sim, EngineConfig{})

	series, base := testSchedule()
	r, err := engine.Create(context.Background(), "sweep", series, base)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := engine.Start(context.Background(), r.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Let at least one step land before stopping.
	time.Sleep(50 * time.Millisecond)
	if err := engine.Stop(r.ID); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	final := awaitTerminal(t, repo, r.ID)
	if final.Status != StatusStopped {
		t.Errorf("status = %s, want stopped", final.Status)
	}
	if final.CompletedSteps >= final.TotalSteps {
		t.Errorf("CompletedSteps = %d, want partial progress", final.CompletedSteps)
	}

	// The instrument is returned to the base assignment after a stop.
	if v, _ := sim.Value("a"); v != 1 {
		t.Errorf("a after stop = %v, want base value 1", v)
	}
	if v, _ := sim.Value("b"); v != 4 {
		t.Errorf("b after stop = %v, want base value 4", v)
	}

	if err := engine.Stop(r.ID); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop() after stop error = %v, want ErrNotRunning", err)
	}
}

func TestEngineRunFailure(t *testing.T) {
	repo := newMockRepository()
	controller := &failingController{succeed: 3}
	camera := instrument.NewSimulator("")
	engine := NewEngine(repo, controller, camera, EngineConfig{})

	series, base := testSchedule()
	r, err := engine.Create(context.Background(), "sweep", series, base)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := engine.Start(context.Background(), r.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	final := awaitTerminal(t, repo, r.ID)
	if final.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", final.Status)
	}
	if final.Error == nil || !strings.Contains(*final.Error, "stuck") {
		t.Errorf("Error = %v, want controller failure message", final.Error)
	}
	if final.CompletedSteps != 1 {
		t.Errorf("CompletedSteps = %d, want 1", final.CompletedSteps)
	}
}
