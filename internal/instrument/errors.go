package instrument

import "errors"

// Domain errors for the instrument package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, instrument.ErrTimeout) {
//	    // bridge did not answer in time
//	}
var (
	// ErrTimeout is returned when a bridge does not acknowledge a command
	// or deliver a capture result within the configured timeout.
	ErrTimeout = errors.New("instrument: command timed out")

	// ErrRejected is returned when a bridge acknowledges a command with an
	// error status.
	ErrRejected = errors.New("instrument: command rejected")

	// ErrClosed is returned when a command is issued after Close.
	ErrClosed = errors.New("instrument: closed")

	// ErrUnavailable is returned when the MQTT connection is down.
	ErrUnavailable = errors.New("instrument: bridge unavailable")

	// ErrBadPayload is returned when a bridge reply cannot be decoded.
	ErrBadPayload = errors.New("instrument: malformed bridge payload")
)
