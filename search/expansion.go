package search

import (
	"cmp"
	"math/rand"
	"time"

	"github.com/gomlx/exceptions"
	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/mcforest/mcforest/problem"
)

// ActionPrior is one entry of an expansion's static policy: the prior
// probability of taking Action at the newly expanded node.
type ActionPrior[A cmp.Ordered] struct {
	Action A
	Prior  float32
}

// Expansion seeds a newly materialized node: it returns a bootstrap
// value vector (one entry per agent) and optionally a static policy
// over the node's actions. An empty policy leaves the uniform prior in
// place.
//
// ExpandBlock is the batched variant the driver uses to amortize
// per-state cost (a neural evaluator would run one forward pass here);
// it must behave like Expand applied to every state.
type Expansion[H, B any, A, O cmp.Ordered] interface {
	Expand(p problem.Problem[H, B, A, O], h *H) (values []float32, policy []ActionPrior[A])
	ExpandBlock(p problem.Problem[H, B, A, O], hs []H) (values [][]float32, policies [][]ActionPrior[A])
}

// EmptyInit bootstraps every new node with a zero value vector and no
// policy, leaving the uniform prior.
type EmptyInit[H, B any, A, O cmp.Ordered] struct{}

// Expand implements Expansion.
func (EmptyInit[H, B, A, O]) Expand(p problem.Problem[H, B, A, O], _ *H) ([]float32, []ActionPrior[A]) {
	return make([]float32, len(p.Agents())), nil
}

// ExpandBlock implements Expansion.
func (e EmptyInit[H, B, A, O]) ExpandBlock(p problem.Problem[H, B, A, O], hs []H) ([][]float32, [][]ActionPrior[A]) {
	values := make([][]float32, len(hs))
	for i := range hs {
		values[i], _ = e.Expand(p, &hs[i])
	}
	return values, make([][]ActionPrior[A], len(hs))
}

// RandomRollout bootstraps a new node by simulating uniformly random
// play from a copy of the state, for at most Horizon steps or until a
// terminal state, and returns the per-agent rewards accumulated along
// the way, discounted by the problem's discount factor. No policy is
// produced.
type RandomRollout[H, B any, A, O cmp.Ordered] struct {
	// Horizon caps the rollout length in steps.
	Horizon uint32
}

// Expand implements Expansion.
func (r RandomRollout[H, B, A, O]) Expand(p problem.Problem[H, B, A, O], h *H) ([]float32, []ActionPrior[A]) {
	state := p.CloneHState(h)
	total := make([]float32, len(p.Agents()))
	factor := float32(1)
	for steps := r.Horizon; steps > 0 && !p.CheckTerminal(&state); steps-- {
		actions := p.LegalActions(&state)
		if len(actions) == 0 {
			exceptions.Panicf("search: problem returned no legal actions for a non-terminal state")
		}
		action := actions[rand.Intn(len(actions))]
		outcomes := p.ApplyAction(&state, action)
		checkOutcomes(len(outcomes), len(total))
		for ix := range total {
			total[ix] += factor * outcomes[ix].Reward
		}
		factor *= p.Discount()
	}
	return total, nil
}

// ExpandBlock implements Expansion.
func (r RandomRollout[H, B, A, O]) ExpandBlock(p problem.Problem[H, B, A, O], hs []H) ([][]float32, [][]ActionPrior[A]) {
	values := make([][]float32, len(hs))
	for i := range hs {
		values[i], _ = r.Expand(p, &hs[i])
	}
	return values, make([][]ActionPrior[A], len(hs))
}

// DirichletNoise wraps another expansion and perturbs its static policy
// with Dirichlet-distributed noise, the usual root-exploration device:
//
//	prior' = (1-Epsilon)*prior + Epsilon*noise
//
// If the inner expansion returns no policy, a uniform one over the
// state's legal actions is synthesized and perturbed instead.
type DirichletNoise[H, B any, A, O cmp.Ordered] struct {
	Inner Expansion[H, B, A, O]
	// Alpha is the symmetric Dirichlet concentration parameter.
	Alpha float64
	// Epsilon is the mixing weight of the noise, typically 0.25.
	Epsilon float32
	// Src drives the noise draws; seeded from the clock if nil.
	Src exprand.Source
}

// Expand implements Expansion.
func (d DirichletNoise[H, B, A, O]) Expand(p problem.Problem[H, B, A, O], h *H) ([]float32, []ActionPrior[A]) {
	values, policy := d.Inner.Expand(p, h)
	return values, d.perturb(p, h, policy)
}

// ExpandBlock implements Expansion.
func (d DirichletNoise[H, B, A, O]) ExpandBlock(p problem.Problem[H, B, A, O], hs []H) ([][]float32, [][]ActionPrior[A]) {
	values, policies := d.Inner.ExpandBlock(p, hs)
	for i := range policies {
		policies[i] = d.perturb(p, &hs[i], policies[i])
	}
	return values, policies
}

func (d DirichletNoise[H, B, A, O]) perturb(p problem.Problem[H, B, A, O], h *H, policy []ActionPrior[A]) []ActionPrior[A] {
	if len(policy) == 0 {
		actions := p.LegalActions(h)
		if len(actions) == 0 {
			return policy
		}
		uniform := float32(1) / float32(len(actions))
		policy = make([]ActionPrior[A], len(actions))
		for i, action := range actions {
			policy[i] = ActionPrior[A]{Action: action, Prior: uniform}
		}
	}
	if len(policy) == 1 {
		return policy
	}
	src := d.Src
	if src == nil {
		src = exprand.NewSource(uint64(time.Now().UnixNano()))
	}
	alpha := make([]float64, len(policy))
	for i := range alpha {
		alpha[i] = d.Alpha
	}
	noise := distmv.NewDirichlet(alpha, src).Rand(nil)
	for i := range policy {
		policy[i].Prior = (1-d.Epsilon)*policy[i].Prior + d.Epsilon*float32(noise[i])
	}
	return policy
}

// checkOutcomes aborts the search when a problem violates the
// one-outcome-per-agent contract.
func checkOutcomes(got, agents int) {
	if got != agents {
		exceptions.Panicf("search: problem returned %d outcomes for %d agents", got, agents)
	}
}
