// Package stats implements the small statistics primitives used by the
// search: an incremental running average and a pair of score bounds used
// to normalize action values.
package stats

import "github.com/chewxy/math32"

// RunningAverage keeps an incremental mean together with the number of
// samples folded into it. The zero value is ready to use and reports a
// mean of 0.
type RunningAverage struct {
	mean  float32
	count uint32
}

// AddSample folds a value observed n times into the average.
func (r *RunningAverage) AddSample(v float32, n uint32) {
	r.count += n
	r.mean += (v - r.mean) * float32(n) / float32(r.count)
}

// Mean returns the current mean, 0 if no samples have been added.
func (r *RunningAverage) Mean() float32 { return r.mean }

// Count returns the number of samples added so far.
func (r *RunningAverage) Count() uint32 { return r.count }

// Bounds tracks the low/high range of scores seen for one agent. It only
// ever widens. A fresh Bounds is empty: it has seen no values and
// normalizes everything to 0.
type Bounds struct {
	low, high float32
	seen      bool
}

// NewKnownBounds returns bounds pre-widened to the given range, for
// problems whose score range is known up front.
func NewKnownBounds(low, high float32) Bounds {
	return Bounds{low: low, high: high, seen: true}
}

// Update widens the bounds to include v.
func (b *Bounds) Update(v float32) {
	if !b.seen {
		b.low, b.high = v, v
		b.seen = true
		return
	}
	if v < b.low {
		b.low = v
	}
	if v > b.high {
		b.high = v
	}
}

// Normalize maps v into [0, 1] relative to the observed range. Empty or
// zero-width bounds normalize to 0, so the result is always finite.
func (b Bounds) Normalize(v float32) float32 {
	if !b.seen || b.high <= b.low {
		return 0
	}
	return (v - b.low) / (b.high - b.low)
}

// Width returns high-low, or 0 for empty bounds.
func (b Bounds) Width() float32 {
	if !b.seen {
		return 0
	}
	return b.high - b.low
}

// Low returns the lowest value seen, +Inf for empty bounds.
func (b Bounds) Low() float32 {
	if !b.seen {
		return math32.Inf(1)
	}
	return b.low
}

// High returns the highest value seen, -Inf for empty bounds.
func (b Bounds) High() float32 {
	if !b.seen {
		return math32.Inf(-1)
	}
	return b.high
}
