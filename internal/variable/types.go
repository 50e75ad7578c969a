package variable

// Variable represents one sweepable instrument quantity.
//
// Min and Max are the physical bounds in raw (uncalibrated) units; either may
// be nil for an open bound. DefaultStart, DefaultEnd and DefaultStep seed the
// sweep normalizer when the user leaves the corresponding field empty.
//
// Variables are created once at session start and treated as immutable
// afterwards.
type Variable struct {
	// Identity
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`

	// Physical bounds in raw units. Nil means the bound is open.
	Min *float64 `json:"min_value,omitempty" yaml:"min_value,omitempty"`
	Max *float64 `json:"max_value,omitempty" yaml:"max_value,omitempty"`

	// Unit of the raw value ("mA", "deg", ...). Empty for unitless.
	Unit string `json:"unit,omitempty" yaml:"unit,omitempty"`

	// Default sweep values in raw units, used by the normalizer's fallback
	// chain. All optional.
	DefaultStart *float64 `json:"default_start,omitempty" yaml:"default_start,omitempty"`
	DefaultEnd   *float64 `json:"default_end,omitempty" yaml:"default_end,omitempty"`
	DefaultStep  *float64 `json:"default_step,omitempty" yaml:"default_step,omitempty"`

	// Calibration is the optional display transform. Nil when the raw value
	// is shown directly.
	Calibration *Calibration `json:"calibration,omitempty" yaml:"calibration,omitempty"`
}

// Calibration is a linear transform between a variable's raw unit and a
// human-facing unit, for example objective lens current (mA) shown as
// magnetic field (T).
//
//	<calibrated value> = <raw value> * Factor
//
// The calibration never affects scheduling arithmetic; the schedule always
// operates in raw units.
type Calibration struct {
	// Factor multiplies a raw value into a calibrated value. Must be non-zero.
	Factor float64 `json:"factor" yaml:"factor"`

	// Name and Unit relabel the variable in calibrated display contexts.
	// Either may be empty to keep the raw label.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Unit string `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// ToCalibrated converts a raw value into the calibrated display value.
func (c *Calibration) ToCalibrated(raw float64) float64 {
	if c == nil {
		return raw
	}
	return raw * c.Factor
}

// ToRaw converts a calibrated display value back into the raw value.
// The zero-factor case is rejected at validation time.
func (c *Calibration) ToRaw(calibrated float64) float64 {
	if c == nil {
		return calibrated
	}
	return calibrated / c.Factor
}

// DisplayName returns the calibrated name if a calibration relabels the
// variable, otherwise the raw name.
func (v *Variable) DisplayName() string {
	if v.Calibration != nil && v.Calibration.Name != "" {
		return v.Calibration.Name
	}
	return v.Name
}

// DisplayUnit returns the calibrated unit if a calibration relabels the
// variable, otherwise the raw unit.
func (v *Variable) DisplayUnit() string {
	if v.Calibration != nil && v.Calibration.Unit != "" {
		return v.Calibration.Unit
	}
	return v.Unit
}

// InBounds reports whether value lies within the variable's declared bounds.
// Open bounds always pass.
func (v *Variable) InBounds(value float64) bool {
	if v.Min != nil && value < *v.Min {
		return false
	}
	if v.Max != nil && value > *v.Max {
		return false
	}
	return true
}

// ClampToBounds forces value into the variable's declared bounds.
// Open bounds leave the value untouched on that side.
func (v *Variable) ClampToBounds(value float64) float64 {
	if v.Min != nil && value < *v.Min {
		value = *v.Min
	}
	if v.Max != nil && value > *v.Max {
		value = *v.Max
	}
	return value
}

// Copy returns an independent copy of the Variable.
// Pointer fields are cloned so the copy cannot alias the original.
func (v *Variable) Copy() *Variable {
	if v == nil {
		return nil
	}
	cpy := *v
	cpy.Min = copyFloat(v.Min)
	cpy.Max = copyFloat(v.Max)
	cpy.DefaultStart = copyFloat(v.DefaultStart)
	cpy.DefaultEnd = copyFloat(v.DefaultEnd)
	cpy.DefaultStep = copyFloat(v.DefaultStep)
	if v.Calibration != nil {
		cal := *v.Calibration
		cpy.Calibration = &cal
	}
	return &cpy
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	f := *p
	return &f
}
