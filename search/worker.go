package search

import (
	"cmp"
	"slices"

	"github.com/mcforest/mcforest/forest"
	"github.com/mcforest/mcforest/stats"
)

// Worker holds the in-flight state of one search goroutine: a block of
// trajectories advancing in lockstep, plus the queues feeding batched
// expansion and terminal backpropagation. A Worker is single-owner and
// does no synchronization of its own; all sharing goes through the
// search's forest and bounds locks.
type Worker[H any, A, O cmp.Ordered] struct {
	statesInFlight       []H
	trajectoriesInFlight []trajectory[A]

	// Expansion candidates accumulate here until a full block is
	// available, then flush through the expansion strategy in one call.
	statesAwaitingExpansion       []H
	trajectoriesAwaitingExpansion []trajectory[A]

	// Trajectories that reached a terminal state; each is
	// backpropagated with a zero value vector. (Expansion backprops by
	// itself.)
	trajectoriesAwaitingBackprop []trajectory[A]

	// Per-pass scratch, reused across block passes.
	agents  []int
	actions []A
	bounds  []stats.Bounds
}

// trajectory is one in-flight sample path: its frontier in every
// agent's tree, and the steps taken to get there.
type trajectory[A cmp.Ordered] struct {
	// current holds one node per agent.
	current []forest.NodeID

	// branch records, per step, the parents with their emitted rewards,
	// the acting agent and the selected action.
	branch []branchStep[A]
}

type branchStep[A cmp.Ordered] struct {
	parents []parentReward
	agentIx int
	action  A
}

type parentReward struct {
	node   forest.NodeID
	reward float32
}

func newTrajectory[A cmp.Ordered](roots []forest.NodeID) trajectory[A] {
	return trajectory[A]{current: slices.Clone(roots)}
}

// reset points the trajectory back at the roots and clears its branch.
func (t *trajectory[A]) reset(roots []forest.NodeID) {
	t.current = slices.Clone(roots)
	t.branch = t.branch[:0]
}

// clone returns a snapshot safe to queue while the original keeps
// advancing.
func (t *trajectory[A]) clone() trajectory[A] {
	return trajectory[A]{
		current: slices.Clone(t.current),
		branch:  slices.Clone(t.branch),
	}
}
