package search

import (
	"cmp"
	"math/rand"

	"github.com/chewxy/math32"
	"github.com/gomlx/exceptions"

	"github.com/mcforest/mcforest/forest"
	"github.com/mcforest/mcforest/stats"
)

// Bandit is the per-step action-selection rule over a node: a pure
// function of the hidden state, a node snapshot and the acting agent's
// score bounds. Implementations must not mutate the node. The hidden
// state is an argument so that agent- or state-specific policies are
// possible; the provided bandits ignore it.
type Bandit[H any, A, O cmp.Ordered] interface {
	Select(h *H, node *forest.Node[A, O], bounds stats.Bounds) A
}

// UniformlyRandom picks any legal action uniformly.
type UniformlyRandom[H any, A, O cmp.Ordered] struct{}

// Select implements Bandit.
func (UniformlyRandom[H, A, O]) Select(_ *H, node *forest.Node[A, O], _ stats.Bounds) A {
	keys := node.ActionKeys()
	if len(keys) == 0 {
		exceptions.Panicf("search: bandit invoked on a node with no actions")
	}
	return keys[rand.Intn(len(keys))]
}

// UCT selects by the upper-confidence-bound rule
//
//	score = normalize(value) + C * sqrt(ln(N) / n)
//
// with N the node's select count and n the action's. Unexplored actions
// are returned first, and actions are shuffled before each scan so that
// equally scored arms cannot starve.
type UCT[H any, A, O cmp.Ordered] struct {
	// C is the exploration constant.
	C float32
}

// Select implements Bandit.
func (u UCT[H, A, O]) Select(_ *H, node *forest.Node[A, O], bounds stats.Bounds) A {
	keys := shuffledActions(node)
	lnN := math32.Log(float32(node.SelectCount()))
	var bestAction A
	bestScore := math32.Inf(-1)
	for _, action := range keys {
		info := node.Action(action)
		n := info.SelectCount()
		if n == 0 {
			return action
		}
		score := bounds.Normalize(info.Value()) + u.C*math32.Sqrt(lnN/float32(n))
		if score > bestScore {
			bestScore = score
			bestAction = action
		}
	}
	return bestAction
}

// PUCT selects by the predictor-weighted upper-confidence rule of
// AlphaZero:
//
//	score = normalize(value) + C * prior * sqrt(N) / (1 + n)
//
// Ties break randomly via the shuffle.
type PUCT[H any, A, O cmp.Ordered] struct {
	// C is the exploration constant.
	C float32
}

// Select implements Bandit.
func (p PUCT[H, A, O]) Select(_ *H, node *forest.Node[A, O], bounds stats.Bounds) A {
	keys := shuffledActions(node)
	sqrtN := math32.Sqrt(float32(node.SelectCount()))
	var bestAction A
	bestScore := math32.Inf(-1)
	for _, action := range keys {
		info := node.Action(action)
		exploration := p.C * info.StaticPolicyScore() * sqrtN / float32(1+info.SelectCount())
		score := bounds.Normalize(info.Value()) + exploration
		if score > bestScore {
			bestScore = score
			bestAction = action
		}
	}
	return bestAction
}

// Greedy selects the action with the best normalized value, breaking
// ties randomly. Useful for evaluation playouts where no exploration is
// wanted.
type Greedy[H any, A, O cmp.Ordered] struct{}

// Select implements Bandit.
func (Greedy[H, A, O]) Select(_ *H, node *forest.Node[A, O], bounds stats.Bounds) A {
	keys := shuffledActions(node)
	var bestAction A
	bestScore := math32.Inf(-1)
	for _, action := range keys {
		score := bounds.Normalize(node.Action(action).Value())
		if score > bestScore {
			bestScore = score
			bestAction = action
		}
	}
	return bestAction
}

// shuffledActions returns the node's actions in a fresh random order.
func shuffledActions[A, O cmp.Ordered](node *forest.Node[A, O]) []A {
	keys := node.ShuffledActionKeys(nil)
	if len(keys) == 0 {
		exceptions.Panicf("search: bandit invoked on a node with no actions")
	}
	return keys
}
