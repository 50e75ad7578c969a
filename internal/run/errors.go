package run

import "errors"

// Domain errors for the run package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, run.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a run ID does not exist.
	ErrNotFound = errors.New("run: not found")

	// ErrExists is returned when creating a run with an ID that already exists.
	ErrExists = errors.New("run: already exists")

	// ErrRunActive is returned when starting a run while another is executing.
	ErrRunActive = errors.New("run: another run is active")

	// ErrNotPending is returned when starting a run that is not in the
	// pending state.
	ErrNotPending = errors.New("run: not pending")

	// ErrNotRunning is returned when stopping a run that is not executing.
	ErrNotRunning = errors.New("run: not running")

	// ErrNoSchedule is returned when a run has no schedule attached.
	ErrNoSchedule = errors.New("run: no schedule")

	// ErrCaptureNotFound is returned when a capture ID does not exist.
	ErrCaptureNotFound = errors.New("run: capture not found")
)
