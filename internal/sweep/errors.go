package sweep

import "errors"

// Domain errors for the sweep package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, sweep.ErrUnknownVariable) {
//	    // handle unknown variable
//	}
var (
	// ErrUnknownVariable is returned when a sweep level names a variable
	// id that is not declared in the registry.
	ErrUnknownVariable = errors.New("sweep: unknown variable")

	// ErrCyclicSeries is returned when a variable id repeats along a
	// parent-to-child chain.
	ErrCyclicSeries = errors.New("sweep: cyclic series")

	// ErrZeroStep is returned when a resolved step width is zero within
	// tolerance.
	ErrZeroStep = errors.New("sweep: zero step width")

	// ErrOutOfBounds is returned when a resolved start, end or base
	// assignment value falls outside the variable's declared bounds.
	ErrOutOfBounds = errors.New("sweep: value out of bounds")

	// ErrMissingAssignment is returned when a declared variable has no
	// value in the base assignment and is not covered by a sweep level.
	ErrMissingAssignment = errors.New("sweep: missing base assignment")

	// ErrInvalidValueType is returned when a supplied value cannot be
	// interpreted as numeric.
	ErrInvalidValueType = errors.New("sweep: value is not numeric")

	// ErrIndexRange is returned when StepAt is called with an index
	// outside [0, Len).
	ErrIndexRange = errors.New("sweep: index out of range")

	// ErrNoSeries is returned when a schedule is requested without a
	// usable series chain.
	ErrNoSeries = errors.New("sweep: no series")
)

// ProblemKind classifies a normalisation problem.
type ProblemKind string

// Problem kinds recorded during normalisation.
const (
	ProblemUnknownVariable   ProblemKind = "unknown_variable"
	ProblemCyclicSeries      ProblemKind = "cyclic_series"
	ProblemZeroStep          ProblemKind = "zero_step"
	ProblemOutOfBounds       ProblemKind = "out_of_bounds"
	ProblemMissingAssignment ProblemKind = "missing_assignment"
	ProblemInvalidValueType  ProblemKind = "invalid_value_type"
)

// Problem describes one normalisation failure. In lenient mode problems
// are collected and a substituted value is used; in strict mode the
// first problem is returned as an error.
type Problem struct {
	Kind       ProblemKind `json:"kind"`
	VariableID string      `json:"variable_id,omitempty"`
	Field      string      `json:"field,omitempty"`
	Message    string      `json:"message"`
}

// Error implements the error interface.
func (p *Problem) Error() string {
	msg := string(p.Kind)
	if p.VariableID != "" {
		msg += " [" + p.VariableID
		if p.Field != "" {
			msg += "." + p.Field
		}
		msg += "]"
	}
	if p.Message != "" {
		msg += ": " + p.Message
	}
	return msg
}

// Unwrap maps the problem kind to its sentinel error so callers can use
// errors.Is against the package sentinels.
func (p *Problem) Unwrap() error {
	switch p.Kind {
	case ProblemUnknownVariable:
		return ErrUnknownVariable
	case ProblemCyclicSeries:
		return ErrCyclicSeries
	case ProblemZeroStep:
		return ErrZeroStep
	case ProblemOutOfBounds:
		return ErrOutOfBounds
	case ProblemMissingAssignment:
		return ErrMissingAssignment
	case ProblemInvalidValueType:
		return ErrInvalidValueType
	default:
		return nil
	}
}
