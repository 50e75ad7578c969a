package instrument

import (
	"context"
	"time"
)

// Controller applies variable values to an instrument.
//
// Apply blocks until the instrument confirms the value was set (or the
// context / command timeout expires). The run engine relies on this
// confirmation before starting the settle delay.
type Controller interface {
	// Apply sets one variable to the given uncalibrated value.
	Apply(ctx context.Context, variableID string, value float64) error

	// Close releases resources held by the controller.
	Close() error
}

// Camera triggers captures on an instrument and reports the stored file.
type Camera interface {
	// Capture requests a single acquisition and blocks until the bridge
	// reports where the file was stored.
	Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error)
}

// CaptureRequest carries the metadata a bridge needs to perform and
// label one acquisition.
type CaptureRequest struct {
	// RunID identifies the run this capture belongs to.
	RunID string `json:"run_id"`

	// StepIndex is the zero-based global index of the step within the run.
	StepIndex int `json:"step_index"`

	// Name is the file name the bridge should store the capture under,
	// without extension. The bridge appends its native format extension.
	Name string `json:"name"`

	// Values holds the full variable assignment active for this step.
	// Recorded into the capture's metadata sidecar by the bridge.
	Values map[string]float64 `json:"values"`
}

// CaptureResult reports a completed acquisition.
type CaptureResult struct {
	// RequestID echoes the command's correlation ID.
	RequestID string `json:"request_id"`

	// FilePath is the bridge-local path of the stored file.
	FilePath string `json:"file_path"`

	// CapturedAt is when the acquisition completed.
	CapturedAt time.Time `json:"captured_at"`
}

// HealthReport is published periodically by bridges on their health topic.
type HealthReport struct {
	InstrumentID string    `json:"instrument_id"`
	Online       bool      `json:"online"`
	Message      string    `json:"message,omitempty"`
	ReportedAt   time.Time `json:"reported_at"`
}
