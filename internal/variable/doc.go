// Package variable provides the measurement-variable catalogue for Sweep Core.
//
// A Variable describes one sweepable instrument quantity (a lens current or a
// stage tilt, say): its identity, physical bounds, optional default sweep
// values and an optional display calibration. Variables are declared once at
// session start, from the instrument profile in the configuration, and are
// immutable for the lifetime of a run.
//
// # Key Types
//
//   - Variable: one sweepable quantity with bounds, defaults and calibration
//   - Calibration: a display-only linear transform between the raw instrument
//     unit and a human-facing unit
//   - Registry: declaration-ordered, thread-safe lookup by variable id
//
// Declaration order matters: the sweep normalizer substitutes "the first
// declared variable not already used" when it has to repair an invalid sweep
// description, so the Registry preserves the order variables were added in.
//
// All scheduling arithmetic operates on raw (uncalibrated) values. The
// Calibration is applied only when values are shown to a person.
package variable
