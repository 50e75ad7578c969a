package variable

import "errors"

// Domain errors for the variable package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, variable.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a variable id is not declared.
	ErrNotFound = errors.New("variable: not found")

	// ErrExists is returned when declaring a variable with an id that is
	// already declared.
	ErrExists = errors.New("variable: already exists")

	// ErrInvalid is returned when variable validation fails.
	ErrInvalid = errors.New("variable: invalid")

	// ErrInvalidID is returned when a variable id is empty or malformed.
	ErrInvalidID = errors.New("variable: invalid id")

	// ErrInvalidBounds is returned when min_value is greater than max_value.
	ErrInvalidBounds = errors.New("variable: invalid bounds")

	// ErrInvalidCalibration is returned when a calibration factor is zero.
	ErrInvalidCalibration = errors.New("variable: invalid calibration")
)
