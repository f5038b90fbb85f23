package search

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/mcforest/mcforest/internal/generics"
	"github.com/mcforest/mcforest/internal/parameters"
	"github.com/mcforest/mcforest/problem"
)

// Defaults used by NewFromParams.
const (
	DefaultBlockSize      = 1
	DefaultUCTConstant    = float32(1.4)
	DefaultRolloutHorizon = uint32(100)
	DefaultDirichletEps   = float32(0.25)
)

// NewFromParams builds a Search from a user configuration string parsed
// into params, e.g.
//
//	"bandit=uct,c=2.4,expansion=rollout,horizon=50,block_size=32,limit=10000"
//
// Recognized keys: block_size, limit (root select count cap), max_time
// (overrides limit with a wall-clock deadline), bandit
// (random|uct|puct|greedy), c (exploration constant), expansion
// (empty|rollout), horizon (rollout length), dirichlet_alpha (enables
// Dirichlet prior noise when > 0) and dirichlet_epsilon. Unknown keys
// are an error.
func NewFromParams[H, B any, A, O cmp.Ordered](
	p problem.Problem[H, B, A, O], belief *B, params parameters.Params,
) (*Search[H, B, A, O], error) {
	var errs error

	blockSize, err := parameters.PopParamOr(params, "block_size", DefaultBlockSize)
	errs = multierror.Append(errs, err).ErrorOrNil()
	limitCount, err := parameters.PopParamOr(params, "limit", uint32(math.MaxUint32))
	errs = multierror.Append(errs, err).ErrorOrNil()
	maxTime, err := parameters.PopParamOr(params, "max_time", time.Duration(0))
	errs = multierror.Append(errs, err).ErrorOrNil()
	banditName, err := parameters.PopParamOr(params, "bandit", "uct")
	errs = multierror.Append(errs, err).ErrorOrNil()
	c, err := parameters.PopParamOr(params, "c", DefaultUCTConstant)
	errs = multierror.Append(errs, err).ErrorOrNil()
	expansionName, err := parameters.PopParamOr(params, "expansion", "empty")
	errs = multierror.Append(errs, err).ErrorOrNil()
	horizon, err := parameters.PopParamOr(params, "horizon", DefaultRolloutHorizon)
	errs = multierror.Append(errs, err).ErrorOrNil()
	dirichletAlpha, err := parameters.PopParamOr(params, "dirichlet_alpha", float64(0))
	errs = multierror.Append(errs, err).ErrorOrNil()
	dirichletEps, err := parameters.PopParamOr(params, "dirichlet_epsilon", DefaultDirichletEps)
	errs = multierror.Append(errs, err).ErrorOrNil()

	if len(params) > 0 {
		leftover := slices.Collect(generics.SortedKeys(params))
		errs = multierror.Append(errs, errors.Errorf("unknown search parameters: %v", leftover))
	}
	if errs != nil {
		return nil, errs
	}

	var bandit Bandit[H, A, O]
	switch banditName {
	case "random":
		bandit = UniformlyRandom[H, A, O]{}
	case "uct":
		bandit = UCT[H, A, O]{C: c}
	case "puct":
		bandit = PUCT[H, A, O]{C: c}
	case "greedy":
		bandit = Greedy[H, A, O]{}
	default:
		return nil, errors.Errorf("unknown bandit %q, want random, uct, puct or greedy", banditName)
	}

	var expansion Expansion[H, B, A, O]
	switch expansionName {
	case "empty":
		expansion = EmptyInit[H, B, A, O]{}
	case "rollout":
		expansion = RandomRollout[H, B, A, O]{Horizon: horizon}
	default:
		return nil, errors.Errorf("unknown expansion %q, want empty or rollout", expansionName)
	}
	if dirichletAlpha > 0 {
		expansion = DirichletNoise[H, B, A, O]{
			Inner:   expansion,
			Alpha:   dirichletAlpha,
			Epsilon: dirichletEps,
		}
	}

	var limit Limit = IterationLimit(limitCount)
	if maxTime > 0 {
		limit = NewTimeLimit(maxTime)
	}
	return New(p, belief, blockSize, limit, bandit, expansion), nil
}
