// Package sweep provides the parameter-sweep scheduling engine for
// Sweep Core.
//
// A sweep is a declared range over one instrument variable, optionally
// nested: on each point of the outer range, an inner range is swept in
// full. The engine turns a raw, possibly incomplete sweep declaration
// into a normalised series chain and exposes the resulting schedule as
// an ordered sequence of steps, where each step assigns a value to
// every declared variable.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────┐
//	│              Normalizer (infer.go)                    │
//	│  Fills missing start/end/step from prioritised        │
//	│  fallback chains, validates bounds, collects          │
//	│  problems (lenient) or fails fast (strict)            │
//	│        │                                              │
//	│        ▼                                              │
//	│  ┌──────────────┐     ┌─────────────────────────┐    │
//	│  │ Series chain │────▶│ StepSequence (sequence.go)│   │
//	│  │ (series.go)  │     │ cached per-level counts,  │   │
//	│  └──────────────┘     │ O(depth) random access,   │   │
//	│                       │ odometer iteration        │   │
//	│                       └─────────────────────────┘    │
//	└──────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - RawSeries: User-supplied, possibly partial sweep declaration
//   - Series: Normalised single level (variable, start, end, step)
//     with an optional nested child
//   - Step: One fully resolved variable-to-value assignment
//   - Normalizer: Fills defaults and validates a RawSeries tree
//   - StepSequence: Random and sequential access to the schedule
//
// # Thread Safety
//
// A StepSequence is immutable once built; StepAt is safe to call
// concurrently from multiple goroutines. An Iterator carries private
// cursor state and must not be shared between goroutines.
//
// # Usage
//
//	norm := sweep.NewNormalizer(registry)
//	res, err := norm.Normalize(raw, base, sweep.ModeStrict)
//	if err != nil {
//	    return err
//	}
//
//	seq := sweep.NewStepSequence(res.Series, res.Base)
//	for it := seq.Iterator(); ; {
//	    step, ok := it.Next()
//	    if !ok {
//	        break
//	    }
//	    apply(step)
//	}
//
// The engine performs no I/O and never blocks; all scheduling
// arithmetic operates in raw, uncalibrated units.
package sweep
