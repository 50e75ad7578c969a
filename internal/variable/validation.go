package variable

import (
	"fmt"
	"regexp"
)

// Validation constants.
const (
	maxIDLength   = 50
	maxNameLength = 100
	idPattern     = `^[a-z][a-z0-9]*(?:-[a-z0-9]+)*$`
)

var idRegex = regexp.MustCompile(idPattern)

// Validate performs validation on a variable declaration.
// Returns an error describing the first validation failure found.
func (v *Variable) Validate() error {
	if v == nil {
		return ErrInvalid
	}

	if err := ValidateID(v.ID); err != nil {
		return err
	}

	if v.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if len(v.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalid, maxNameLength)
	}

	if v.Min != nil && v.Max != nil && *v.Min > *v.Max {
		return fmt.Errorf("%w: min_value %g is greater than max_value %g",
			ErrInvalidBounds, *v.Min, *v.Max)
	}

	for field, value := range map[string]*float64{
		"default_start": v.DefaultStart,
		"default_end":   v.DefaultEnd,
	} {
		if value != nil && !v.InBounds(*value) {
			return fmt.Errorf("%w: %s %g is outside bounds", ErrInvalidBounds, field, *value)
		}
	}

	if v.Calibration != nil && v.Calibration.Factor == 0 {
		return fmt.Errorf("%w: factor must be non-zero", ErrInvalidCalibration)
	}

	return nil
}

// ValidateID checks a variable id: lower-case ASCII, digits and single
// hyphens, must not start with a digit.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidID)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%w: id exceeds %d characters", ErrInvalidID, maxIDLength)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("%w: %q (use lower-case letters, digits and hyphens, starting with a letter)",
			ErrInvalidID, id)
	}
	return nil
}
