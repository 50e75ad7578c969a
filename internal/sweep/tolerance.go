package sweep

import "math"

// Shared floating-point tolerance. The zero-step check and the
// per-level count arithmetic both use Close with these parameters;
// divergent tolerances between those call sites would produce an
// off-by-one on the last step of a level. The iterator carries on the
// integer counts that levelCount produced, so it inherits the same
// tolerance rather than applying its own.
const (
	relTolerance = 1e-9
	absTolerance = 1e-12
)

// Close reports whether a and b are equal within the shared tolerance.
func Close(a, b float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	limit := relTolerance * math.Max(math.Abs(a), math.Abs(b))
	return diff <= math.Max(limit, absTolerance)
}

// clampDirectional limits value to the closed interval between start
// and end regardless of travel direction. Floating-point accumulation
// can push the last point of a level fractionally outside end; the
// clamp keeps every produced coordinate inside the declared range.
func clampDirectional(value, start, end float64) float64 {
	if start <= end {
		return math.Max(start, math.Min(value, end))
	}
	return math.Min(start, math.Max(value, end))
}

// levelCount returns the number of points in a level spanning start to
// end by step. The ratio is rounded when it lands within tolerance of
// an integer so that a step which almost exactly divides the range
// still counts its final point.
func levelCount(start, end, step float64) int {
	ratio := (end - start) / step
	if ratio < 0 {
		return 1
	}
	rounded := math.Round(ratio)
	if Close(ratio, rounded) {
		return int(rounded) + 1
	}
	return int(math.Floor(ratio)) + 1
}
