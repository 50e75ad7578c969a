package instrument

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Simulator is an in-process Controller and Camera.
//
// It accepts every Apply, remembers the last value per variable, and
// writes a small metadata file for each Capture so downstream code can
// exercise the full set/settle/capture/save pipeline without hardware.
//
// Thread Safety: all methods are safe for concurrent use.
type Simulator struct {
	// OutputDir is where capture files are written. Empty disables file
	// writes; Capture then returns a synthetic path without touching disk.
	OutputDir string

	// ApplyDelay simulates instrument response time (zero for tests).
	ApplyDelay time.Duration

	mu     sync.Mutex
	values map[string]float64
	count  int
	closed bool
}

// NewSimulator creates a Simulator writing captures under outputDir.
func NewSimulator(outputDir string) *Simulator {
	return &Simulator{
		OutputDir: outputDir,
		values:    make(map[string]float64),
	}
}

// Apply records the value as the variable's current setting.
func (s *Simulator) Apply(ctx context.Context, variableID string, value float64) error {
	if s.ApplyDelay > 0 {
		timer := time.NewTimer(s.ApplyDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.values[variableID] = value
	return nil
}

// Capture writes a metadata stub and reports it as the captured file.
func (s *Simulator) Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.count++
	s.mu.Unlock()

	now := time.Now().UTC()
	path := filepath.Join(s.OutputDir, req.Name+".txt")

	if s.OutputDir != "" {
		content := fmt.Sprintf("run=%s step=%d captured=%s\n", req.RunID, req.StepIndex, now.Format(time.RFC3339))
		for id, v := range req.Values {
			content += fmt.Sprintf("%s=%v\n", id, v)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			return nil, fmt.Errorf("writing simulated capture: %w", err)
		}
	}

	return &CaptureResult{
		RequestID:  uuid.New().String(),
		FilePath:   path,
		CapturedAt: now,
	}, nil
}

// Value returns the last applied value for a variable.
func (s *Simulator) Value(variableID string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[variableID]
	return v, ok
}

// Captures returns how many captures have been performed.
func (s *Simulator) Captures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Close marks the simulator closed; subsequent commands fail.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
