package sweep

import (
	"encoding/json"
	"strconv"
)

// Step is one fully resolved instrument configuration: a value for
// every declared variable, in raw units.
type Step map[string]float64

// Copy returns an independent copy of the step.
func (s Step) Copy() Step {
	out := make(Step, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Series is one normalised sweep level. Start, End and Step are fully
// resolved, Step is non-zero and its sign matches the start-to-end
// direction. Child, when set, is swept in full on each point of this
// level. A Series chain is immutable once built.
type Series struct {
	VariableID string  `json:"variable"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Step       float64 `json:"step-width"`

	Child *Series `json:"on-each-point,omitempty"`
}

// Depth returns the number of levels in the chain.
func (s *Series) Depth() int {
	n := 0
	for lvl := s; lvl != nil; lvl = lvl.Child {
		n++
	}
	return n
}

// Levels flattens the chain into a slice ordered outermost first.
func (s *Series) Levels() []*Series {
	var out []*Series
	for lvl := s; lvl != nil; lvl = lvl.Child {
		out = append(out, lvl)
	}
	return out
}

// Count returns the number of points on this level alone.
func (s *Series) Count() int {
	return levelCount(s.Start, s.End, s.Step)
}

// Copy returns a deep copy of the chain.
func (s *Series) Copy() *Series {
	if s == nil {
		return nil
	}
	cpy := *s
	cpy.Child = s.Child.Copy()
	return &cpy
}

// VariableIDs returns the variable ids covered by the chain, outermost
// first.
func (s *Series) VariableIDs() []string {
	var out []string
	for lvl := s; lvl != nil; lvl = lvl.Child {
		out = append(out, lvl.VariableID)
	}
	return out
}

// Covers reports whether the chain sweeps the given variable.
func (s *Series) Covers(id string) bool {
	for lvl := s; lvl != nil; lvl = lvl.Child {
		if lvl.VariableID == id {
			return true
		}
	}
	return false
}

// RawSeries is a user-supplied sweep declaration before normalisation.
// Any field may be absent; values are loosely typed because they arrive
// from JSON bodies, YAML files or interactive prompts. OnEachPoint
// holds either a *RawSeries or a decoded map.
type RawSeries struct {
	Variable    any `json:"variable,omitempty" yaml:"variable,omitempty"`
	Start       any `json:"start,omitempty" yaml:"start,omitempty"`
	End         any `json:"end,omitempty" yaml:"end,omitempty"`
	Step        any `json:"step-width,omitempty" yaml:"step-width,omitempty"`
	OnEachPoint any `json:"on-each-point,omitempty" yaml:"on-each-point,omitempty"`
}

// asRawSeries interprets v as a nested sweep declaration. Accepts a
// *RawSeries, a RawSeries value, or a decoded map.
func asRawSeries(v any) (*RawSeries, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case *RawSeries:
		if t == nil {
			return nil, false
		}
		return t, true
	case RawSeries:
		return &t, true
	case map[string]any:
		return &RawSeries{
			Variable:    t["variable"],
			Start:       t["start"],
			End:         t["end"],
			Step:        t["step-width"],
			OnEachPoint: t["on-each-point"],
		}, true
	default:
		return nil, false
	}
}

// toFloat interprets v as a numeric value. Accepts the numeric types a
// JSON or YAML decoder produces plus numeric strings.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// toString interprets v as a variable id.
func toString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok && s != ""
}
