package sweep

import (
	"fmt"
	"sync"
)

// StepSequence exposes a normalised series chain and base assignment
// as an ordered, randomly addressable schedule of steps.
//
// The per-level counts and index arithmetic are computed once on first
// access and cached; the chain is immutable after construction so the
// cache never needs invalidation. StepAt is safe for concurrent use.
type StepSequence struct {
	series *Series
	base   Step

	once       sync.Once
	levels     []*Series
	counts     []int
	cumulative []int // cumulative[i] = product of counts[i:], innermost equals its own count
	total      int
}

// NewStepSequence creates a schedule over the given series chain and
// base assignment. Both inputs are copied; later mutation by the caller
// does not affect the sequence.
func NewStepSequence(series *Series, base Step) *StepSequence {
	return &StepSequence{
		series: series.Copy(),
		base:   base.Copy(),
	}
}

// index computes and caches the nest bookkeeping.
func (s *StepSequence) index() {
	s.once.Do(func() {
		s.levels = s.series.Levels()
		s.counts = make([]int, len(s.levels))
		s.cumulative = make([]int, len(s.levels))

		for i, lvl := range s.levels {
			s.counts[i] = lvl.Count()
		}

		product := 1
		for i := len(s.levels) - 1; i >= 0; i-- {
			product *= s.counts[i]
			s.cumulative[i] = product
		}
		s.total = product
	})
}

// Len returns the total number of steps: the product of every level's
// point count.
func (s *StepSequence) Len() int {
	if s.series == nil {
		return 0
	}
	s.index()
	return s.total
}

// Series returns a copy of the normalised series chain, for display.
func (s *StepSequence) Series() *Series {
	return s.series.Copy()
}

// Base returns a copy of the base assignment.
func (s *StepSequence) Base() Step {
	return s.base.Copy()
}

// Counts returns the per-level point counts, outermost first.
func (s *StepSequence) Counts() []int {
	s.index()
	out := make([]int, len(s.counts))
	copy(out, s.counts)
	return out
}

// StepAt returns the step at the given flat index in O(depth) time.
// The index must satisfy 0 <= index < Len(); violations are hard
// failures in every mode.
func (s *StepSequence) StepAt(index int) (Step, error) {
	if s.series == nil {
		return nil, ErrNoSeries
	}
	s.index()

	if index < 0 || index >= s.total {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexRange, index, s.total)
	}

	step := s.base.Copy()
	remaining := index
	last := len(s.levels) - 1

	for i, lvl := range s.levels {
		var valueIndex int
		if i < last {
			valueIndex = remaining / s.cumulative[i+1]
			remaining = remaining % s.cumulative[i+1]
		} else {
			valueIndex = remaining
		}
		step[lvl.VariableID] = s.levelValue(i, valueIndex)
	}

	return step, nil
}

// levelValue computes the coordinate for a value index on one level.
// The clamp keeps floating-point accumulation from pushing the last
// point fractionally past end.
func (s *StepSequence) levelValue(level, valueIndex int) float64 {
	lvl := s.levels[level]
	value := lvl.Start + float64(valueIndex)*lvl.Step
	return clampDirectional(value, lvl.Start, lvl.End)
}

// Iterator returns a fresh sequential iterator positioned before the
// first step. Each call returns an independent iterator; iterators must
// not be shared between goroutines.
func (s *StepSequence) Iterator() *Iterator {
	s.index()
	return &Iterator{seq: s, indices: make([]int, len(s.levels))}
}

// Iterator walks the schedule sequentially with odometer-style carry:
// the innermost level advances first, and an exhausted level resets to
// its start while the next-outer level takes one step. The values it
// produces are identical to StepAt called with increasing indices.
type Iterator struct {
	seq       *StepSequence
	indices   []int // per-level value index, outermost first
	started   bool
	exhausted bool
}

// Next returns the next step, or false when the schedule is exhausted.
// Each returned step is an independent copy.
func (it *Iterator) Next() (Step, bool) {
	if it.exhausted || it.seq.series == nil {
		return nil, false
	}

	if !it.started {
		it.started = true
		return it.current(), true
	}

	// Carry on the cached integer counts, never on recomputed float
	// coordinates: both the cursor and StepAt then address the same
	// count arithmetic, so the iterator exhausts after exactly Len()
	// steps for every start/end/step combination.
	for i := len(it.indices) - 1; i >= 0; i-- {
		if it.indices[i]+1 < it.seq.counts[i] {
			it.indices[i]++
			return it.current(), true
		}
		it.indices[i] = 0
	}

	// Every level carried: the outermost wheel has rolled over.
	it.exhausted = true
	return nil, false
}

// Reset rewinds the iterator to before the first step.
func (it *Iterator) Reset() {
	for i := range it.indices {
		it.indices[i] = 0
	}
	it.started = false
	it.exhausted = false
}

// current materialises the step at the iterator's cursor.
func (it *Iterator) current() Step {
	step := it.seq.base.Copy()
	for i, lvl := range it.seq.levels {
		step[lvl.VariableID] = it.seq.levelValue(i, it.indices[i])
	}
	return step
}
