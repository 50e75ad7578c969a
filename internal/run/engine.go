package run

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quench-lab/sweep-core/internal/infrastructure/mqtt"
	"github.com/quench-lab/sweep-core/internal/instrument"
	"github.com/quench-lab/sweep-core/internal/sweep"
)

// Logger is the minimal logging interface this package requires.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Publisher is the interface for publishing run events to MQTT.
type Publisher interface {
	// Publish sends a message to the specified MQTT topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Broadcaster is the interface for pushing run events to WebSocket clients.
type Broadcaster interface {
	// Broadcast sends an event to all clients subscribed to the given channel.
	Broadcast(channel string, payload any)
}

// Telemetry is the interface for recording time-series run metrics.
// *influxdb.Client satisfies it.
type Telemetry interface {
	WriteStepValue(runID string, stepIndex int, variableID string, value float64)
	WriteStepTiming(runID string, stepIndex int, settle, capture time.Duration)
	WriteRunProgress(runID string, completed, total int)
	WriteRunSummary(runID string, status string, totalSteps, completedSteps int, elapsed time.Duration)
}

// EngineConfig holds run execution settings.
type EngineConfig struct {
	// SettleDelay is the pause between applying a step's values and
	// triggering the capture.
	SettleDelay time.Duration

	// NameFormat renders capture file names; empty uses DefaultNameFormat.
	NameFormat string

	// ProgressInterval bounds how often progress rows are persisted and
	// published. Zero persists every step.
	ProgressInterval int
}

// Engine executes measurement runs.
//
// One run executes at a time. Start launches the step pipeline in a
// goroutine and returns immediately; Stop cancels the active run and
// waits for it to wind down.
type Engine struct {
	repo       Repository
	controller instrument.Controller
	camera     instrument.Camera
	publisher  Publisher   // may be nil
	telemetry  Telemetry   // may be nil
	hub        Broadcaster // may be nil
	topics     mqtt.Topics
	cfg        EngineConfig
	logger     Logger

	mu     sync.Mutex
	active *activeRun
}

// activeRun tracks the executing run's cancellation handle.
type activeRun struct {
	runID  string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a run engine.
//
// Parameters:
//   - repo: Run persistence
//   - controller: Applies variable values to the instrument
//   - camera: Triggers captures
//   - cfg: Execution settings
func NewEngine(repo Repository, controller instrument.Controller, camera instrument.Camera, cfg EngineConfig) *Engine {
	return &Engine{
		repo:       repo,
		controller: controller,
		camera:     camera,
		cfg:        cfg,
		logger:     noopLogger{},
	}
}

// SetLogger replaces the default no-op logger.
func (e *Engine) SetLogger(logger Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// SetPublisher attaches an MQTT publisher for run status and progress
// events. Nil disables publishing.
func (e *Engine) SetPublisher(publisher Publisher) {
	e.publisher = publisher
}

// SetTelemetry attaches a time-series sink for step values and run
// summaries. Nil disables telemetry.
func (e *Engine) SetTelemetry(telemetry Telemetry) {
	e.telemetry = telemetry
}

// SetBroadcaster attaches a WebSocket hub for run events. Nil disables
// broadcasting.
func (e *Engine) SetBroadcaster(hub Broadcaster) {
	e.hub = hub
}

// Create persists a new pending run over the given schedule.
//
// Returns:
//   - *Run: The created run with its generated ID and step total
//   - error: ErrNoSchedule if series is nil, or a repository error
func (e *Engine) Create(ctx context.Context, name string, series *sweep.Series, base sweep.Step) (*Run, error) {
	if series == nil {
		return nil, ErrNoSchedule
	}

	seq := sweep.NewStepSequence(series, base)
	r := &Run{
		ID:         uuid.New().String(),
		Name:       name,
		Status:     StatusPending,
		Series:     series.Copy(),
		Base:       base.Copy(),
		TotalSteps: seq.Len(),
		CreatedAt:  time.Now().UTC(),
	}

	if err := e.repo.Create(ctx, r); err != nil {
		return nil, err
	}

	e.logger.Info("run created",
		"run_id", r.ID,
		"name", r.Name,
		"total_steps", r.TotalSteps,
	)
	return r, nil
}

// Start begins executing a pending run.
//
// The step pipeline runs in a goroutine; Start returns once the run is
// marked running.
//
// Returns:
//   - error: nil on success, or:
//   - ErrNotFound if the run doesn't exist
//   - ErrNotPending if the run already started
//   - ErrRunActive if another run is executing
func (e *Engine) Start(ctx context.Context, runID string) error {
	r, err := e.repo.GetByID(ctx, runID)
	if err != nil {
		return err
	}
	if r.Status != StatusPending {
		return fmt.Errorf("%w: status %s", ErrNotPending, r.Status)
	}
	if r.Series == nil {
		return ErrNoSchedule
	}

	e.mu.Lock()
	if e.active != nil {
		active := e.active.runID
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRunActive, active)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	handle := &activeRun{runID: runID, cancel: cancel, done: make(chan struct{})}
	e.active = handle
	e.mu.Unlock()

	now := time.Now().UTC()
	r.Status = StatusRunning
	r.StartedAt = &now
	if err := e.repo.Update(ctx, r); err != nil {
		e.clearActive(handle)
		cancel()
		close(handle.done)
		return fmt.Errorf("marking run started: %w", err)
	}

	e.publishStatus(r)
	e.logger.Info("run started",
		"run_id", r.ID,
		"name", r.Name,
		"total_steps", r.TotalSteps,
	)

	go e.execute(runCtx, handle, r)
	return nil
}

// Stop cancels the active run. It blocks until the run goroutine has
// persisted the stopped state.
//
// Returns:
//   - error: ErrNotRunning if the given run is not the active one
func (e *Engine) Stop(runID string) error {
	e.mu.Lock()
	handle := e.active
	e.mu.Unlock()

	if handle == nil || handle.runID != runID {
		return ErrNotRunning
	}

	handle.cancel()
	<-handle.done
	return nil
}

// Active returns the ID of the executing run, if any.
func (e *Engine) Active() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return "", false
	}
	return e.active.runID, true
}

// Close stops any active run and waits for it to finish.
func (e *Engine) Close() error {
	e.mu.Lock()
	handle := e.active
	e.mu.Unlock()

	if handle != nil {
		handle.cancel()
		<-handle.done
	}
	return nil
}

// execute drives the step pipeline for one run. It owns the run's final
// state transition and always clears the active slot.
func (e *Engine) execute(ctx context.Context, handle *activeRun, r *Run) {
	defer close(handle.done)
	defer e.clearActive(handle)

	started := time.Now().UTC()
	seq := sweep.NewStepSequence(r.Series, r.Base)
	order := applyOrder(r.Series, r.Base)

	var runErr error
	completed := 0
	stopped := false

	it := seq.Iterator()
	for index := 0; ; index++ {
		step, ok := it.Next()
		if !ok {
			break
		}

		if ctx.Err() != nil {
			stopped = true
			break
		}

		if err := e.executeStep(ctx, r, index, step, order); err != nil {
			if ctx.Err() != nil {
				stopped = true
			} else {
				runErr = fmt.Errorf("step %d: %w", index, err)
			}
			break
		}

		completed++
		e.recordProgress(r, completed)
	}

	// Persist the terminal state with a fresh context; the run context
	// is cancelled when the operator stops the run.
	finishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	r.CompletedSteps = completed
	r.FinishedAt = &now

	switch {
	case runErr != nil:
		r.Status = StatusFailed
		msg := runErr.Error()
		r.Error = &msg
	case stopped:
		r.Status = StatusStopped
	default:
		r.Status = StatusCompleted
	}

	if err := e.repo.Update(finishCtx, r); err != nil {
		e.logger.Error("failed to persist run result", "run_id", r.ID, "error", err)
	}

	// A run that did not finish cleanly leaves the instrument at an
	// arbitrary point; return it to the base assignment.
	if r.Status != StatusCompleted {
		e.resetToBase(finishCtx, r)
	}

	elapsed := now.Sub(started)
	e.publishStatus(r)
	if e.telemetry != nil {
		e.telemetry.WriteRunSummary(r.ID, string(r.Status), r.TotalSteps, completed, elapsed)
	}

	e.logger.Info("run finished",
		"run_id", r.ID,
		"status", r.Status,
		"completed", completed,
		"total", r.TotalSteps,
		"elapsed", elapsed,
	)
}

// executeStep applies one step's values, settles, captures, and persists
// the capture record.
func (e *Engine) executeStep(ctx context.Context, r *Run, index int, step sweep.Step, order []string) error {
	settleStart := time.Now()

	for _, id := range order {
		value, ok := step[id]
		if !ok {
			continue
		}
		if err := e.controller.Apply(ctx, id, value); err != nil {
			return fmt.Errorf("applying %s=%v: %w", id, value, err)
		}
		if e.telemetry != nil {
			e.telemetry.WriteStepValue(r.ID, index, id, value)
		}
	}

	if err := e.settle(ctx); err != nil {
		return err
	}
	settleDur := time.Since(settleStart)

	captureStart := time.Now()
	name := FormatName(e.cfg.NameFormat, index, time.Now().UTC(), step)
	result, err := e.camera.Capture(ctx, instrument.CaptureRequest{
		RunID:     r.ID,
		StepIndex: index,
		Name:      name,
		Values:    step,
	})
	if err != nil {
		return fmt.Errorf("capturing: %w", err)
	}
	captureDur := time.Since(captureStart)

	capture := &Capture{
		ID:         uuid.New().String(),
		RunID:      r.ID,
		StepIndex:  index,
		Step:       step,
		FilePath:   result.FilePath,
		CapturedAt: result.CapturedAt,
	}
	if err := e.repo.CreateCapture(ctx, capture); err != nil {
		return fmt.Errorf("saving capture: %w", err)
	}

	if e.telemetry != nil {
		e.telemetry.WriteStepTiming(r.ID, index, settleDur, captureDur)
	}

	e.logger.Debug("step complete",
		"run_id", r.ID,
		"step", index,
		"file", result.FilePath,
	)
	return nil
}

// resetToBase reapplies the base assignment, best effort.
func (e *Engine) resetToBase(ctx context.Context, r *Run) {
	for _, id := range applyOrder(r.Series, r.Base) {
		value, ok := r.Base[id]
		if !ok {
			continue
		}
		if err := e.controller.Apply(ctx, id, value); err != nil {
			e.logger.Warn("failed to reset variable to base",
				"run_id", r.ID,
				"variable", id,
				"error", err,
			)
		}
	}
}

// settle waits the configured delay, honouring cancellation.
func (e *Engine) settle(ctx context.Context) error {
	if e.cfg.SettleDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(e.cfg.SettleDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// recordProgress persists and publishes the completed-step count at the
// configured interval. The final count is always persisted by execute.
func (e *Engine) recordProgress(r *Run, completed int) {
	interval := e.cfg.ProgressInterval
	if interval <= 0 {
		interval = 1
	}
	if completed%interval != 0 && completed != r.TotalSteps {
		return
	}

	r.CompletedSteps = completed

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.repo.Update(ctx, r); err != nil {
		e.logger.Warn("failed to persist progress", "run_id", r.ID, "error", err)
	}

	e.publishProgress(r, completed)
	if e.telemetry != nil {
		e.telemetry.WriteRunProgress(r.ID, completed, r.TotalSteps)
	}
}

// publishStatus publishes the run's lifecycle state, retained so late
// subscribers see the current state.
func (e *Engine) publishStatus(r *Run) {
	event := map[string]any{
		"run_id": r.ID,
		"name":   r.Name,
		"status": string(r.Status),
		"error":  r.Error,
	}

	if e.hub != nil {
		e.hub.Broadcast("run.status", event)
	}

	if e.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := e.publisher.Publish(e.topics.CoreRunStatus(r.ID), payload, 1, true); err != nil {
		e.logger.Warn("failed to publish run status", "run_id", r.ID, "error", err)
	}
}

// publishProgress publishes the completed-step counter.
func (e *Engine) publishProgress(r *Run, completed int) {
	event := map[string]any{
		"run_id":    r.ID,
		"completed": completed,
		"total":     r.TotalSteps,
	}

	if e.hub != nil {
		e.hub.Broadcast("run.progress", event)
	}

	if e.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := e.publisher.Publish(e.topics.CoreRunProgress(r.ID), payload, 0, false); err != nil {
		e.logger.Warn("failed to publish run progress", "run_id", r.ID, "error", err)
	}
}

// clearActive releases the active slot if it still belongs to handle.
func (e *Engine) clearActive(handle *activeRun) {
	e.mu.Lock()
	if e.active == handle {
		e.active = nil
	}
	e.mu.Unlock()
}

// applyOrder fixes the variable application order for every step:
// swept variables outermost first, then the remaining base variables
// sorted by ID. Map iteration order would otherwise vary per step.
func applyOrder(series *sweep.Series, base sweep.Step) []string {
	order := series.VariableIDs()
	seen := make(map[string]struct{}, len(order))
	for _, id := range order {
		seen[id] = struct{}{}
	}

	var rest []string
	for id := range base {
		if _, ok := seen[id]; !ok {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}
