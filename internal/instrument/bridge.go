package instrument

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quench-lab/sweep-core/internal/infrastructure/mqtt"
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

// Bus is the MQTT surface the bridge needs. *mqtt.Client satisfies it.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// BridgeConfig holds per-instrument command timing.
type BridgeConfig struct {
	// CommandTimeout bounds how long Apply waits for an acknowledgement.
	CommandTimeout time.Duration

	// CaptureTimeout bounds how long Capture waits for a result.
	CaptureTimeout time.Duration
}

const (
	defaultCommandTimeout = 5 * time.Second
	defaultCaptureTimeout = 30 * time.Second

	// commandQoS is at-least-once. Bridges must deduplicate by request_id.
	commandQoS = 1
)

// setCommand is the payload published to the set topic.
type setCommand struct {
	RequestID string  `json:"request_id"`
	Variable  string  `json:"variable"`
	Value     float64 `json:"value"`
}

// ackReply is the payload bridges publish on the ack topic.
type ackReply struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"` // "ok" or "error"
	Message   string `json:"message,omitempty"`
}

// captureReply is the payload bridges publish on the capture-result topic.
type captureReply struct {
	RequestID  string    `json:"request_id"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	FilePath   string    `json:"file_path,omitempty"`
	CapturedAt time.Time `json:"captured_at,omitempty"`
}

// Bridge drives one instrument over MQTT.
//
// Commands carry a correlation ID. Replies are matched to waiting callers
// through a pending map; unmatched replies (late arrivals after a timeout)
// are logged and dropped.
type Bridge struct {
	bus          Bus
	instrumentID string
	cfg          BridgeConfig
	topics       mqtt.Topics
	logger       Logger

	mu      sync.Mutex
	pending map[string]chan bridgeReply
	closed  bool
}

// bridgeReply is the internal union delivered to waiting callers.
type bridgeReply struct {
	status   string
	message  string
	filePath string
	capAt    time.Time
}

// NewBridge creates a Bridge for the given instrument and subscribes to
// its ack and capture-result topics.
//
// Parameters:
//   - bus: Connected MQTT client
//   - instrumentID: The instrument this bridge fronts (e.g., "tem-01")
//   - cfg: Command timing; zero values use package defaults
//
// Returns:
//   - *Bridge: Ready to issue commands
//   - error: If either subscription fails
func NewBridge(bus Bus, instrumentID string, cfg BridgeConfig) (*Bridge, error) {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = defaultCaptureTimeout
	}

	b := &Bridge{
		bus:          bus,
		instrumentID: instrumentID,
		cfg:          cfg,
		logger:       noopLogger{},
		pending:      make(map[string]chan bridgeReply),
	}

	if err := bus.Subscribe(b.topics.InstrumentAcks(instrumentID), commandQoS, b.handleAck); err != nil {
		return nil, fmt.Errorf("subscribing to acks: %w", err)
	}
	if err := bus.Subscribe(b.topics.InstrumentCaptureResults(instrumentID), commandQoS, b.handleCaptureResult); err != nil {
		return nil, fmt.Errorf("subscribing to capture results: %w", err)
	}

	return b, nil
}

// SetLogger replaces the default no-op logger.
func (b *Bridge) SetLogger(logger Logger) {
	if logger != nil {
		b.logger = logger
	}
}

// InstrumentID returns the instrument this bridge fronts.
func (b *Bridge) InstrumentID() string {
	return b.instrumentID
}

// Apply sets one variable on the instrument and waits for the bridge's
// acknowledgement.
//
// Returns:
//   - error: nil on acknowledged success, or:
//   - ErrClosed if the bridge was closed
//   - ErrUnavailable if MQTT is disconnected
//   - ErrTimeout if no acknowledgement arrives in time
//   - ErrRejected if the bridge reports an error status
func (b *Bridge) Apply(ctx context.Context, variableID string, value float64) error {
	requestID := uuid.New().String()

	ch, err := b.register(requestID)
	if err != nil {
		return err
	}
	defer b.unregister(requestID)

	cmd := setCommand{RequestID: requestID, Variable: variableID, Value: value}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshalling set command: %w", err)
	}

	topic := b.topics.InstrumentSet(b.instrumentID, variableID)
	if err := b.bus.Publish(topic, payload, commandQoS, false); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	b.logger.Debug("set command published",
		"instrument", b.instrumentID,
		"variable", variableID,
		"value", value,
		"request_id", requestID,
	)

	reply, err := b.await(ctx, ch, b.cfg.CommandTimeout)
	if err != nil {
		return fmt.Errorf("set %s=%v: %w", variableID, value, err)
	}
	if reply.status != "ok" {
		return fmt.Errorf("%w: set %s=%v: %s", ErrRejected, variableID, value, reply.message)
	}
	return nil
}

// Capture requests a single acquisition and waits for the stored-file
// report.
func (b *Bridge) Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	requestID := uuid.New().String()

	ch, err := b.register(requestID)
	if err != nil {
		return nil, err
	}
	defer b.unregister(requestID)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshalling capture request: %w", err)
	}

	topic := b.topics.InstrumentCapture(b.instrumentID, requestID)
	if err := b.bus.Publish(topic, payload, commandQoS, false); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	b.logger.Debug("capture request published",
		"instrument", b.instrumentID,
		"run_id", req.RunID,
		"step_index", req.StepIndex,
		"request_id", requestID,
	)

	reply, err := b.await(ctx, ch, b.cfg.CaptureTimeout)
	if err != nil {
		return nil, fmt.Errorf("capture step %d: %w", req.StepIndex, err)
	}
	if reply.status != "ok" {
		return nil, fmt.Errorf("%w: capture step %d: %s", ErrRejected, req.StepIndex, reply.message)
	}

	capturedAt := reply.capAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}
	return &CaptureResult{
		RequestID:  requestID,
		FilePath:   reply.filePath,
		CapturedAt: capturedAt,
	}, nil
}

// Close unsubscribes from the bridge's topics and fails pending waiters.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for id, ch := range b.pending {
		close(ch)
		delete(b.pending, id)
	}
	b.mu.Unlock()

	if err := b.bus.Unsubscribe(b.topics.InstrumentAcks(b.instrumentID)); err != nil {
		return fmt.Errorf("unsubscribing acks: %w", err)
	}
	if err := b.bus.Unsubscribe(b.topics.InstrumentCaptureResults(b.instrumentID)); err != nil {
		return fmt.Errorf("unsubscribing capture results: %w", err)
	}
	return nil
}

// register creates the reply channel for a request.
func (b *Bridge) register(requestID string) (chan bridgeReply, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if !b.bus.IsConnected() {
		return nil, ErrUnavailable
	}
	ch := make(chan bridgeReply, 1)
	b.pending[requestID] = ch
	return ch, nil
}

// unregister removes the reply channel after the caller stops waiting.
func (b *Bridge) unregister(requestID string) {
	b.mu.Lock()
	delete(b.pending, requestID)
	b.mu.Unlock()
}

// await blocks until a reply, context cancellation, or the timeout.
func (b *Bridge) await(ctx context.Context, ch chan bridgeReply, timeout time.Duration) (bridgeReply, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply, ok := <-ch:
		if !ok {
			return bridgeReply{}, ErrClosed
		}
		return reply, nil
	case <-ctx.Done():
		return bridgeReply{}, ctx.Err()
	case <-timer.C:
		return bridgeReply{}, ErrTimeout
	}
}

// handleAck decodes an ack payload and delivers it to the waiting caller.
func (b *Bridge) handleAck(topic string, payload []byte) error {
	var ack ackReply
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBadPayload, topic, err)
	}
	if ack.RequestID == "" {
		return fmt.Errorf("%w: %s: missing request_id", ErrBadPayload, topic)
	}

	b.deliver(ack.RequestID, bridgeReply{status: ack.Status, message: ack.Message})
	return nil
}

// handleCaptureResult decodes a capture result and delivers it.
func (b *Bridge) handleCaptureResult(topic string, payload []byte) error {
	var result captureReply
	if err := json.Unmarshal(payload, &result); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBadPayload, topic, err)
	}
	if result.RequestID == "" {
		return fmt.Errorf("%w: %s: missing request_id", ErrBadPayload, topic)
	}

	b.deliver(result.RequestID, bridgeReply{
		status:   result.Status,
		message:  result.Message,
		filePath: result.FilePath,
		capAt:    result.CapturedAt,
	})
	return nil
}

// deliver routes a reply to its waiter. Late replies after a timeout have
// no waiter and are dropped with a log line.
func (b *Bridge) deliver(requestID string, reply bridgeReply) {
	b.mu.Lock()
	ch, ok := b.pending[requestID]
	if ok {
		// The send stays under the lock: Close closes pending channels
		// while holding it, so a channel fetched here cannot be closed
		// before the send. The channel is buffered, so the send never
		// blocks.
		select {
		case ch <- reply:
		default:
			// Duplicate reply for the same request; first one wins.
		}
	}
	b.mu.Unlock()

	if !ok {
		b.logger.Warn("dropping reply with no waiter",
			"instrument", b.instrumentID,
			"request_id", requestID,
		)
	}
}
