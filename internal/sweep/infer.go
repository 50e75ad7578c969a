package sweep

import (
	"fmt"

	"github.com/quench-lab/sweep-core/internal/variable"
)

// Mode selects the error policy during normalisation.
type Mode string

const (
	// ModeStrict fails on the first problem and returns no partial
	// series. Used when constructing the final run.
	ModeStrict Mode = "strict"

	// ModeLenient substitutes a best-effort value at each problem and
	// collects the full problem list alongside a usable result. Used by
	// live-editing views that must always show a valid schedule.
	ModeLenient Mode = "lenient"
)

// Valid reports whether m is a recognised mode.
func (m Mode) Valid() bool {
	return m == ModeStrict || m == ModeLenient
}

const (
	// fallbackValue is substituted when every start/end candidate is
	// exhausted.
	fallbackValue = 0.0

	// spanDivisor splits a known range into five equal steps when no
	// step width is declared anywhere.
	spanDivisor = 5.0

	// substituteStep replaces a step that resolved to zero in lenient
	// mode.
	substituteStep = 1.0
)

// Defaults carries caller-supplied per-variable default values. They
// are probed after explicit input but before the descriptor defaults.
type Defaults struct {
	Start map[string]float64
	End   map[string]float64
	Step  map[string]float64
}

// Result is the outcome of a normalisation pass. In lenient mode
// Problems lists every substitution that was made; the series and base
// are always usable. In strict mode Problems is empty on success.
type Result struct {
	Series   *Series    `json:"series"`
	Base     Step       `json:"base"`
	Problems []*Problem `json:"problems,omitempty"`
}

// Normalizer fills in missing start, end and step fields of a raw
// sweep declaration from prioritised fallback chains, validates bounds
// against the variable registry, and resolves the base assignment.
//
// A Normalizer is safe for concurrent use; it holds no per-call state.
type Normalizer struct {
	registry *variable.Registry
	defaults Defaults
}

// NewNormalizer creates a normalizer over the given variable registry.
func NewNormalizer(registry *variable.Registry) *Normalizer {
	return &Normalizer{registry: registry}
}

// SetDefaults sets the caller-supplied default values probed during
// inference. Must be called before Normalize, not concurrently with it.
func (n *Normalizer) SetDefaults(d Defaults) {
	n.defaults = d
}

// Normalize converts a raw sweep declaration and a raw base assignment
// into a fully resolved series chain and base step.
//
// In strict mode the first problem aborts normalisation and is returned
// as the error. In lenient mode problems are substituted and collected;
// the returned error is non-nil only when the top-level variable could
// not be resolved at all, in which case the returned Result still
// carries the problems found up to that point.
func (n *Normalizer) Normalize(raw *RawSeries, base map[string]any, mode Mode) (*Result, error) {
	res := &Result{}

	if raw == nil {
		p := &Problem{Kind: ProblemUnknownVariable, Message: "no sweep declared"}
		res.Problems = append(res.Problems, p)
		return res, p
	}

	series, err := n.normalizeLevel(raw, base, nil, mode, res)
	if err != nil {
		return res, err
	}
	if series == nil {
		p := &Problem{
			Kind:    ProblemUnknownVariable,
			Message: "top-level sweep variable could not be resolved",
		}
		res.Problems = append(res.Problems, p)
		return res, p
	}
	res.Series = series

	baseStep, err := n.resolveBase(series, base, mode, res)
	if err != nil {
		return res, err
	}
	res.Base = baseStep

	return res, nil
}

// report records a problem in lenient mode or returns it as an error in
// strict mode.
func (n *Normalizer) report(res *Result, mode Mode, p *Problem) error {
	if mode == ModeStrict {
		return p
	}
	res.Problems = append(res.Problems, p)
	return nil
}

// normalizeLevel resolves one level of the declaration and recurses
// into its nested child. Returns (nil, nil) when the level is abandoned
// in lenient mode.
func (n *Normalizer) normalizeLevel(raw *RawSeries, base map[string]any, ancestors []string, mode Mode, res *Result) (*Series, error) {
	id, err := n.resolveVariable(raw, ancestors, mode, res)
	if err != nil || id == "" {
		return nil, err
	}

	// Cycle guard: sweeping a variable against itself has no safe
	// substitute, so the level and its children are abandoned.
	for _, anc := range ancestors {
		if anc == id {
			p := &Problem{
				Kind:       ProblemCyclicSeries,
				VariableID: id,
				Message:    fmt.Sprintf("variable %q already swept by an outer level", id),
			}
			if err := n.report(res, mode, p); err != nil {
				return nil, err
			}
			return nil, nil
		}
	}

	v, err := n.registry.Get(id)
	if err != nil {
		return nil, err
	}

	// Step width first: the start/end fallbacks below depend on its
	// sign and magnitude.
	step, stepKnown, err := n.resolveStepEarly(raw, v, mode, res)
	if err != nil {
		return nil, err
	}

	// Explicit bounds are coerced up front so each side can feed the
	// other's fallback chain.
	explStart, explStartOK, err := n.coerceExplicit(raw.Start, "start", id, mode, res)
	if err != nil {
		return nil, err
	}
	explEnd, explEndOK, err := n.coerceExplicit(raw.End, "end", id, mode, res)
	if err != nil {
		return nil, err
	}

	start, err := n.resolveStart(v, base, explStart, explStartOK, explEnd, explEndOK, step, stepKnown, mode, res)
	if err != nil {
		return nil, err
	}
	end, err := n.resolveEnd(v, explEnd, explEndOK, start, step, stepKnown, mode, res)
	if err != nil {
		return nil, err
	}

	// Last-resort step width: a fifth of the resolved span.
	if !stepKnown {
		step = (end - start) / spanDivisor
	}
	if Close(step, 0) {
		p := &Problem{
			Kind:       ProblemZeroStep,
			VariableID: id,
			Field:      "step-width",
			Message:    "resolved step width is zero",
		}
		if err := n.report(res, mode, p); err != nil {
			return nil, err
		}
		step = substituteStep
	}

	// Align the step sign with the travel direction.
	if !Close(start, end) && (end-start)*step < 0 {
		step = -step
	}

	lvl := &Series{VariableID: id, Start: start, End: end, Step: step}

	if raw.OnEachPoint != nil {
		childRaw, ok := asRawSeries(raw.OnEachPoint)
		if !ok {
			p := &Problem{
				Kind:       ProblemInvalidValueType,
				VariableID: id,
				Field:      "on-each-point",
				Message:    "nested sweep is not a series declaration",
			}
			if err := n.report(res, mode, p); err != nil {
				return nil, err
			}
		} else {
			child, err := n.normalizeLevel(childRaw, base, append(ancestors, id), mode, res)
			if err != nil {
				return nil, err
			}
			lvl.Child = child
		}
	}

	return lvl, nil
}

// resolveVariable returns the level's variable id, substituting the
// first declared variable not used by an ancestor in lenient mode.
// Returns "" when no substitute remains.
func (n *Normalizer) resolveVariable(raw *RawSeries, ancestors []string, mode Mode, res *Result) (string, error) {
	id, ok := toString(raw.Variable)
	if ok && n.registry.Has(id) {
		return id, nil
	}

	p := &Problem{Kind: ProblemUnknownVariable}
	if ok {
		p.VariableID = id
		p.Message = fmt.Sprintf("variable %q is not declared", id)
	} else {
		p.Message = "sweep level declares no variable"
	}
	if err := n.report(res, mode, p); err != nil {
		return "", err
	}

	for _, candidate := range n.registry.IDs() {
		used := false
		for _, anc := range ancestors {
			if anc == candidate {
				used = true
				break
			}
		}
		if !used {
			return candidate, nil
		}
	}
	return "", nil
}

// resolveStepEarly tries the step candidates that do not depend on the
// resolved bounds: explicit value, caller default, descriptor default.
func (n *Normalizer) resolveStepEarly(raw *RawSeries, v *variable.Variable, mode Mode, res *Result) (float64, bool, error) {
	if raw.Step != nil {
		f, ok := toFloat(raw.Step)
		switch {
		case !ok:
			p := &Problem{
				Kind:       ProblemInvalidValueType,
				VariableID: v.ID,
				Field:      "step-width",
				Message:    fmt.Sprintf("cannot interpret %v as a number", raw.Step),
			}
			if err := n.report(res, mode, p); err != nil {
				return 0, false, err
			}
		case Close(f, 0):
			p := &Problem{
				Kind:       ProblemZeroStep,
				VariableID: v.ID,
				Field:      "step-width",
				Message:    "declared step width is zero",
			}
			if err := n.report(res, mode, p); err != nil {
				return 0, false, err
			}
		default:
			return f, true, nil
		}
	}

	if f, ok := n.defaults.Step[v.ID]; ok && !Close(f, 0) {
		return f, true, nil
	}
	if v.DefaultStep != nil && !Close(*v.DefaultStep, 0) {
		return *v.DefaultStep, true, nil
	}
	return 0, false, nil
}

// coerceExplicit converts an explicitly declared bound to a float.
// A present but non-numeric value is an InvalidValueType problem; in
// lenient mode the bound then falls through to its default chain.
func (n *Normalizer) coerceExplicit(raw any, field, id string, mode Mode, res *Result) (float64, bool, error) {
	if raw == nil {
		return 0, false, nil
	}
	f, ok := toFloat(raw)
	if !ok {
		p := &Problem{
			Kind:       ProblemInvalidValueType,
			VariableID: id,
			Field:      field,
			Message:    fmt.Sprintf("cannot interpret %v as a number", raw),
		}
		if err := n.report(res, mode, p); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	}
	return f, true, nil
}

// boundAccepted reports whether a fallback candidate is usable: inside
// the descriptor bounds and, when the opposite bound is known, on the
// correct side of it for the step direction.
func boundAccepted(value float64, v *variable.Variable, other float64, otherKnown bool, step float64, stepKnown bool, towardOther bool) bool {
	if !v.InBounds(value) {
		return false
	}
	if !otherKnown || !stepKnown {
		return true
	}
	if Close(value, other) {
		return true
	}
	ascending := step >= 0
	if towardOther {
		// value is a start travelling toward other.
		if ascending {
			return value < other
		}
		return value > other
	}
	// value is an end reached from other.
	if ascending {
		return value > other
	}
	return value < other
}

// resolveStart resolves a level's start value.
//
// Priority: explicit value, base assignment entry, caller default,
// descriptor default, a value derived from end and step, the bound
// opposite to the sweep direction, end itself, then a global fallback.
func (n *Normalizer) resolveStart(v *variable.Variable, base map[string]any, expl float64, explOK bool, end float64, endOK bool, step float64, stepKnown bool, mode Mode, res *Result) (float64, error) {
	if explOK {
		return n.acceptExplicit(v, expl, "start", mode, res)
	}

	candidates := []func() (float64, bool){
		func() (float64, bool) {
			raw, ok := base[v.ID]
			if !ok {
				return 0, false
			}
			f, numOK := toFloat(raw)
			return f, numOK
		},
		func() (float64, bool) {
			f, ok := n.defaults.Start[v.ID]
			return f, ok
		},
		func() (float64, bool) {
			if v.DefaultStart == nil {
				return 0, false
			}
			return *v.DefaultStart, true
		},
		func() (float64, bool) {
			if !endOK || !stepKnown {
				return 0, false
			}
			return end - step*spanDivisor, true
		},
		func() (float64, bool) {
			// Bound opposite to the sweep direction. An unresolved
			// step counts as ascending.
			if !stepKnown || step >= 0 {
				if v.Min == nil {
					return 0, false
				}
				return *v.Min, true
			}
			if v.Max == nil {
				return 0, false
			}
			return *v.Max, true
		},
		func() (float64, bool) {
			return end, endOK
		},
		func() (float64, bool) {
			return fallbackValue, true
		},
	}

	for _, candidate := range candidates {
		val, ok := candidate()
		if ok && boundAccepted(val, v, end, endOK, step, stepKnown, true) {
			return val, nil
		}
	}
	return v.ClampToBounds(fallbackValue), nil
}

// resolveEnd resolves a level's end value. Symmetric to resolveStart
// with the in-direction bound substituted and no base-assignment
// candidate.
func (n *Normalizer) resolveEnd(v *variable.Variable, expl float64, explOK bool, start float64, step float64, stepKnown bool, mode Mode, res *Result) (float64, error) {
	if explOK {
		return n.acceptExplicit(v, expl, "end", mode, res)
	}

	candidates := []func() (float64, bool){
		func() (float64, bool) {
			f, ok := n.defaults.End[v.ID]
			return f, ok
		},
		func() (float64, bool) {
			if v.DefaultEnd == nil {
				return 0, false
			}
			return *v.DefaultEnd, true
		},
		func() (float64, bool) {
			if !stepKnown {
				return 0, false
			}
			return start + step*spanDivisor, true
		},
		func() (float64, bool) {
			// Bound in the sweep direction. An unresolved step counts
			// as ascending.
			if !stepKnown || step >= 0 {
				if v.Max == nil {
					return 0, false
				}
				return *v.Max, true
			}
			if v.Min == nil {
				return 0, false
			}
			return *v.Min, true
		},
		func() (float64, bool) {
			return start, true
		},
		func() (float64, bool) {
			return fallbackValue, true
		},
	}

	for _, candidate := range candidates {
		val, ok := candidate()
		if ok && boundAccepted(val, v, start, true, step, stepKnown, false) {
			return val, nil
		}
	}
	return v.ClampToBounds(fallbackValue), nil
}

// acceptExplicit validates an explicitly declared bound against the
// descriptor bounds. Out-of-bounds values are reported and, in lenient
// mode, clamped rather than discarded: the user asked for this value,
// so the nearest legal value beats an inferred default.
func (n *Normalizer) acceptExplicit(v *variable.Variable, val float64, field string, mode Mode, res *Result) (float64, error) {
	if v.InBounds(val) {
		return val, nil
	}
	p := &Problem{
		Kind:       ProblemOutOfBounds,
		VariableID: v.ID,
		Field:      field,
		Message:    fmt.Sprintf("%s %g is outside the declared bounds", field, val),
	}
	if err := n.report(res, mode, p); err != nil {
		return 0, err
	}
	return v.ClampToBounds(val), nil
}

// resolveBase builds the base assignment covering every declared
// variable. Variables swept by the chain take that level's start,
// overriding any caller-supplied value so the base and the series
// cannot disagree. The rest must come from the caller; a gap is filled
// from the defaults and recorded as MissingAssignment.
func (n *Normalizer) resolveBase(series *Series, base map[string]any, mode Mode, res *Result) (Step, error) {
	out := make(Step, n.registry.Count())

	for _, v := range n.registry.List() {
		if lvl := findLevel(series, v.ID); lvl != nil {
			out[v.ID] = lvl.Start
			continue
		}

		if raw, ok := base[v.ID]; ok {
			f, numOK := toFloat(raw)
			if numOK {
				if !v.InBounds(f) {
					p := &Problem{
						Kind:       ProblemOutOfBounds,
						VariableID: v.ID,
						Field:      "base",
						Message:    fmt.Sprintf("base value %g is outside the declared bounds", f),
					}
					if err := n.report(res, mode, p); err != nil {
						return nil, err
					}
					f = v.ClampToBounds(f)
				}
				out[v.ID] = f
				continue
			}
			p := &Problem{
				Kind:       ProblemInvalidValueType,
				VariableID: v.ID,
				Field:      "base",
				Message:    fmt.Sprintf("cannot interpret %v as a number", raw),
			}
			if err := n.report(res, mode, p); err != nil {
				return nil, err
			}
		}

		switch {
		case n.defaults.Start != nil && hasKey(n.defaults.Start, v.ID):
			out[v.ID] = v.ClampToBounds(n.defaults.Start[v.ID])
		case v.DefaultStart != nil:
			out[v.ID] = *v.DefaultStart
		default:
			out[v.ID] = v.ClampToBounds(fallbackValue)
		}

		p := &Problem{
			Kind:       ProblemMissingAssignment,
			VariableID: v.ID,
			Message:    fmt.Sprintf("no base value for variable %q", v.ID),
		}
		if err := n.report(res, mode, p); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func hasKey(m map[string]float64, id string) bool {
	_, ok := m[id]
	return ok
}

func findLevel(series *Series, id string) *Series {
	for lvl := series; lvl != nil; lvl = lvl.Child {
		if lvl.VariableID == id {
			return lvl
		}
	}
	return nil
}
