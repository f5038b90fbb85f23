package problem

import (
	"cmp"

	"github.com/gomlx/exceptions"
)

// FullyObservable is the narrower capability for deterministic games
// with no hidden information: there is a single state type, and every
// agent observes the action just taken.
type FullyObservable[S any, A cmp.Ordered] interface {
	// Agents enumerates the decision makers in a fixed order.
	Agents() []Agent

	// StartState returns the initial state.
	StartState() S

	// CloneState returns an independent copy of s.
	CloneState(s *S) S

	// AgentToAct returns the acting agent at s.
	AgentToAct(s *S) Agent

	// CheckTerminal reports whether s is terminal.
	CheckTerminal(s *S) bool

	// LegalActions enumerates the actions available to the acting agent.
	LegalActions(s *S) []A

	// ApplyAction advances s in place and returns one reward per agent.
	ApplyAction(s *S, action A) []float32

	// Discount is the per-step reward discount in (0, 1].
	Discount() float32
}

// Adapt lifts a FullyObservable game to the full Problem capability:
// hidden state and belief share the state type, the observation is the
// action just taken, and updating the belief means applying the action.
func Adapt[S any, A cmp.Ordered](game FullyObservable[S, A]) Problem[S, S, A, A] {
	return adapted[S, A]{game}
}

type adapted[S any, A cmp.Ordered] struct {
	game FullyObservable[S, A]
}

func (p adapted[S, A]) StartState() S { return p.game.StartState() }
func (p adapted[S, A]) Agents() []Agent { return p.game.Agents() }
func (p adapted[S, A]) AgentToAct(h *S) Agent { return p.game.AgentToAct(h) }
func (p adapted[S, A]) LegalActions(h *S) []A { return p.game.LegalActions(h) }
func (p adapted[S, A]) CheckTerminal(h *S) bool { return p.game.CheckTerminal(h) }
func (p adapted[S, A]) Discount() float32 { return p.game.Discount() }
func (p adapted[S, A]) CloneHState(h *S) S { return p.game.CloneState(h) }
func (p adapted[S, A]) SampleHState(b *S) S { return p.game.CloneState(b) }
func (p adapted[S, A]) BeliefUpdate(b *S, obs A) { p.game.ApplyAction(b, obs) }

func (p adapted[S, A]) ApplyAction(h *S, action A) []Outcome[A] {
	rewards := p.game.ApplyAction(h, action)
	agents := p.game.Agents()
	if len(rewards) != len(agents) {
		exceptions.Panicf("problem: ApplyAction returned %d rewards for %d agents", len(rewards), len(agents))
	}
	outcomes := make([]Outcome[A], len(agents))
	for i, agent := range agents {
		outcomes[i] = Outcome[A]{Reward: rewards[agent], Observation: action}
	}
	return outcomes
}
