package search

import "time"

// Limit decides whether a search should keep going. Workers consult it
// once per block pass, against the current select count of the first
// root, before selecting actions.
type Limit interface {
	// More reports whether the search should continue.
	More(rootSelectCount uint32) bool
}

// IterationLimit caps the root select count.
type IterationLimit uint32

// More implements Limit.
func (l IterationLimit) More(rootSelectCount uint32) bool {
	return rootSelectCount < uint32(l)
}

// TimeLimit stops the search at a wall-clock deadline, with the same
// check-point semantics as IterationLimit.
type TimeLimit struct {
	Deadline time.Time
}

// NewTimeLimit returns a TimeLimit expiring d from now.
func NewTimeLimit(d time.Duration) TimeLimit {
	return TimeLimit{Deadline: time.Now().Add(d)}
}

// More implements Limit.
func (l TimeLimit) More(uint32) bool {
	return time.Now().Before(l.Deadline)
}
