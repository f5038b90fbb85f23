package search

import (
	"cmp"
	"context"
	"math/rand"
	"time"

	"github.com/chewxy/math32"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/mcforest/mcforest/internal/generics"
	"github.com/mcforest/mcforest/problem"
)

// PlayoutStep records one decision of a playout: the acting agent, the
// root policy the search produced, the action actually taken, and the
// per-agent rewards and observations the problem emitted for it.
type PlayoutStep[A, O cmp.Ordered] struct {
	Agent        problem.Agent
	Policy       []ActionStat[A]
	Action       A
	Rewards      []float32
	Observations []O
}

// Playout repeatedly searches the current belief, takes an action on
// the true hidden state, and folds the resulting observation back into
// the belief — the self-play / evaluation loop on top of Search.
type Playout[H, B any, A, O cmp.Ordered] struct {
	Problem   problem.Problem[H, B, A, O]
	Bandit    Bandit[H, A, O]
	Expansion Expansion[H, B, A, O]

	// BlockSize is the per-worker trajectory block; defaults to 1.
	BlockSize int
	// NumWorkers is the number of search goroutines; defaults to 1.
	NumWorkers int

	// MaxSimulations caps the root select count of each per-move
	// search. MaxTime, if set, replaces it with a wall-clock budget.
	MaxSimulations uint32
	MaxTime        time.Duration

	// MaxMoves stops the playout after this many decisions; 0 means
	// play until a terminal state.
	MaxMoves int

	// Temperature selects how actions are picked from the root policy:
	// 0 takes the most visited action, anything else samples from the
	// visit shares raised to 1/Temperature.
	Temperature float32

	// Rng drives action sampling; the global source is used if nil.
	Rng *rand.Rand
}

func (p *Playout[H, B, A, O]) validate() error {
	var errs error
	if p.Problem == nil {
		errs = multierror.Append(errs, errors.New("playout: Problem is required"))
	}
	if p.Bandit == nil {
		errs = multierror.Append(errs, errors.New("playout: Bandit is required"))
	}
	if p.Expansion == nil {
		errs = multierror.Append(errs, errors.New("playout: Expansion is required"))
	}
	if p.MaxSimulations == 0 && p.MaxTime <= 0 {
		errs = multierror.Append(errs, errors.New("playout: one of MaxSimulations or MaxTime is required"))
	}
	if p.Temperature < 0 {
		errs = multierror.Append(errs, errors.Errorf("playout: negative temperature %f", p.Temperature))
	}
	return errs
}

// Run plays out one episode and returns its step records. Each decision
// builds a fresh search over the current belief; the forest is not
// carried over between moves.
func (p *Playout[H, B, A, O]) Run(ctx context.Context) ([]PlayoutStep[A, O], error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	blockSize := max(p.BlockSize, 1)
	numWorkers := max(p.NumWorkers, 1)

	belief := p.Problem.StartState()
	state := p.Problem.SampleHState(&belief)
	var steps []PlayoutStep[A, O]
	for move := 0; p.MaxMoves == 0 || move < p.MaxMoves; move++ {
		if err := ctx.Err(); err != nil {
			return steps, err
		}
		if p.Problem.CheckTerminal(&state) {
			break
		}

		s := New(p.Problem, &belief, blockSize, p.newLimit(), p.Bandit, p.Expansion)
		if err := s.RunParallel(ctx, s.NewWorkers(numWorkers)); err != nil {
			return steps, err
		}
		policy := s.GetPolicy()
		if len(policy) == 0 {
			break
		}

		agent := p.Problem.AgentToAct(&state)
		action := p.pickAction(policy)
		outcomes := p.Problem.ApplyAction(&state, action)
		checkOutcomes(len(outcomes), len(p.Problem.Agents()))
		p.Problem.BeliefUpdate(&belief, outcomes[agent].Observation)

		if klog.V(2).Enabled() {
			klog.Infof("playout move %d: agent=%d action=%v visits=%d", move, agent, action, s.RootSelectCount())
		}
		steps = append(steps, PlayoutStep[A, O]{
			Agent:        agent,
			Policy:       policy,
			Action:       action,
			Rewards:      generics.SliceMap(outcomes, func(o problem.Outcome[O]) float32 { return o.Reward }),
			Observations: generics.SliceMap(outcomes, func(o problem.Outcome[O]) O { return o.Observation }),
		})
	}
	return steps, nil
}

func (p *Playout[H, B, A, O]) newLimit() Limit {
	if p.MaxTime > 0 {
		return NewTimeLimit(p.MaxTime)
	}
	return IterationLimit(p.MaxSimulations)
}

// pickAction picks greedily by visit share at temperature 0, and
// otherwise samples from the shares raised to 1/Temperature.
func (p *Playout[H, B, A, O]) pickAction(policy []ActionStat[A]) A {
	if p.Temperature == 0 {
		best := policy[0]
		for _, stat := range policy[1:] {
			if stat.Share > best.Share {
				best = stat
			}
		}
		return best.Action
	}

	weights := make([]float32, len(policy))
	var sum float32
	for i, stat := range policy {
		weights[i] = math32.Pow(stat.Share, 1/p.Temperature)
		sum += weights[i]
	}
	roll := rand.Float32()
	if p.Rng != nil {
		roll = p.Rng.Float32()
	}
	roll *= sum
	for i, w := range weights {
		roll -= w
		if roll <= 0 {
			return policy[i].Action
		}
	}
	// Rounding can leave a sliver of probability mass; take the last.
	return policy[len(policy)-1].Action
}
