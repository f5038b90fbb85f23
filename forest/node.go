package forest

import (
	"cmp"
	"iter"
	"math/rand"

	"github.com/gomlx/exceptions"

	"github.com/mcforest/mcforest/internal/generics"
	"github.com/mcforest/mcforest/stats"
)

// Node is one decision point in one agent's tree. The zero value is an
// empty node: no actions materialized, no children, no visits.
type Node[A, O cmp.Ordered] struct {
	actionsCreated bool
	actions        map[A]*ActionInfo
	children       map[O]NodeID
	value          stats.RunningAverage
	selectCount    uint32
}

// ActionInfo holds the per-action statistics of a node.
type ActionInfo struct {
	actionReward     stats.RunningAverage
	valueOfNextState stats.RunningAverage
	selectCount      uint32
	staticPolicy     float32
}

// ActionsCreated reports whether the legal actions of this decision
// point have been materialized.
func (n *Node[A, O]) ActionsCreated() bool { return n.actionsCreated }

// CreateActions materializes the legal-action table. Each action starts
// with empty running averages, a zero select count and a uniform static
// policy score; a later expansion may overwrite the scores. The key set
// is frozen from here on, and calling CreateActions a second time
// panics.
func (n *Node[A, O]) CreateActions(actions []A) {
	if n.actionsCreated {
		exceptions.Panicf("forest: CreateActions called twice on the same node")
	}
	n.actionsCreated = true
	n.actions = make(map[A]*ActionInfo, len(actions))
	uniform := float32(1) / float32(len(actions))
	for _, action := range actions {
		n.actions[action] = &ActionInfo{staticPolicy: uniform}
	}
}

// Action returns the statistics of the given action, or nil if the
// action is unknown. The pointer aliases the arena and follows the same
// locking discipline as Forest.Node.
func (n *Node[A, O]) Action(action A) *ActionInfo {
	return n.actions[action]
}

// Actions iterates over the action table in action order.
func (n *Node[A, O]) Actions() iter.Seq2[A, *ActionInfo] {
	return generics.SortedKeysAndValues(n.actions)
}

// ActionKeys returns the actions in map order.
func (n *Node[A, O]) ActionKeys() []A {
	return generics.KeysSlice(n.actions)
}

// ShuffledActionKeys returns the actions in a fresh uniformly random
// order drawn from rng, or from the global source if rng is nil.
func (n *Node[A, O]) ShuffledActionKeys(rng *rand.Rand) []A {
	return generics.ShuffledKeys(n.actions, rng)
}

// NumActions returns the size of the action table.
func (n *Node[A, O]) NumActions() int { return len(n.actions) }

// Child returns the child node installed under the given observation.
func (n *Node[A, O]) Child(obs O) (NodeID, bool) {
	id, ok := n.children[obs]
	return id, ok
}

// Children iterates over the observation-child table in observation
// order.
func (n *Node[A, O]) Children() iter.Seq2[O, NodeID] {
	return generics.SortedKeysAndValues(n.children)
}

// NumChildren returns the size of the observation-child table.
func (n *Node[A, O]) NumChildren() int { return len(n.children) }

// SelectCount returns the number of trajectories that passed through
// this node.
func (n *Node[A, O]) SelectCount() uint32 { return n.selectCount }

// IncrementSelectCount records one more trajectory passing through.
func (n *Node[A, O]) IncrementSelectCount() { n.selectCount++ }

// Value returns the node's running value average.
func (n *Node[A, O]) Value() stats.RunningAverage { return n.value }

// AddValueSample folds a bootstrap or backup value into the node's
// value average.
func (n *Node[A, O]) AddValueSample(v float32) { n.value.AddSample(v, 1) }

// SelectCount returns the number of trajectories that took this action.
func (a *ActionInfo) SelectCount() uint32 { return a.selectCount }

// IncrementSelectCount records one more selection of this action.
func (a *ActionInfo) IncrementSelectCount() { a.selectCount++ }

// StaticPolicyScore returns the prior probability assigned by the
// expansion strategy (uniform until one runs).
func (a *ActionInfo) StaticPolicyScore() float32 { return a.staticPolicy }

// SetStaticPolicyScore overwrites the prior probability.
func (a *ActionInfo) SetStaticPolicyScore(p float32) { a.staticPolicy = p }

// AddRewardSample folds an observed immediate reward into the action's
// reward average.
func (a *ActionInfo) AddRewardSample(v float32) { a.actionReward.AddSample(v, 1) }

// AddNextValueSample folds a bootstrap value accumulated from the
// successor state into the action's next-state value average.
func (a *ActionInfo) AddNextValueSample(v float32) { a.valueOfNextState.AddSample(v, 1) }

// ActionReward returns the running mean of immediate rewards.
func (a *ActionInfo) ActionReward() stats.RunningAverage { return a.actionReward }

// ValueOfNextState returns the running mean of successor bootstrap
// values.
func (a *ActionInfo) ValueOfNextState() stats.RunningAverage { return a.valueOfNextState }

// Value is the derived action value: mean immediate reward plus mean
// successor value.
func (a *ActionInfo) Value() float32 {
	return a.actionReward.Mean() + a.valueOfNextState.Mean()
}
