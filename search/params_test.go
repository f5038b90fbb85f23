package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcforest/mcforest/internal/parameters"
	"github.com/mcforest/mcforest/problem"
	"github.com/mcforest/mcforest/problem/problemtest"
)

func newParamsSearch(t *testing.T, config string) *Search[problemtest.TicTacToeState, problemtest.TicTacToeState, int, int] {
	t.Helper()
	p := newTTT()
	belief := p.StartState()
	s, err := NewFromParams(p, &belief, parameters.NewFromConfigString(config))
	require.NoError(t, err)
	return s
}

func TestNewFromParamsDefaults(t *testing.T) {
	s := newParamsSearch(t, "")
	require.Equal(t, DefaultBlockSize, s.blockSize)
	require.IsType(t, UCT[problemtest.TicTacToeState, int, int]{}, s.bandit)
	require.IsType(t, EmptyInit[problemtest.TicTacToeState, problemtest.TicTacToeState, int, int]{}, s.expansion)
}

func TestNewFromParamsFull(t *testing.T) {
	s := newParamsSearch(t, "bandit=puct,c=1.1,expansion=rollout,horizon=20,block_size=8,limit=500,dirichlet_alpha=0.3")
	require.Equal(t, 8, s.blockSize)
	require.Equal(t, IterationLimit(500), s.limit)
	puct, ok := s.bandit.(PUCT[problemtest.TicTacToeState, int, int])
	require.True(t, ok)
	require.InDelta(t, 1.1, puct.C, 1e-6)
	noisy, ok := s.expansion.(DirichletNoise[problemtest.TicTacToeState, problemtest.TicTacToeState, int, int])
	require.True(t, ok)
	require.InDelta(t, 0.3, noisy.Alpha, 1e-6)
	require.InDelta(t, DefaultDirichletEps, noisy.Epsilon, 1e-6)
	rollout, ok := noisy.Inner.(RandomRollout[problemtest.TicTacToeState, problemtest.TicTacToeState, int, int])
	require.True(t, ok)
	require.Equal(t, uint32(20), rollout.Horizon)
}

func TestNewFromParamsMaxTime(t *testing.T) {
	s := newParamsSearch(t, "max_time=5ms")
	_, ok := s.limit.(TimeLimit)
	require.True(t, ok)
}

func TestNewFromParamsErrors(t *testing.T) {
	p := newTTT()
	belief := p.StartState()

	_, err := NewFromParams(p, &belief, parameters.NewFromConfigString("bandit=bogus"))
	require.Error(t, err)

	_, err = NewFromParams(p, &belief, parameters.NewFromConfigString("expansion=bogus"))
	require.Error(t, err)

	_, err = NewFromParams(p, &belief, parameters.NewFromConfigString("no_such_key=1"))
	require.ErrorContains(t, err, "no_such_key")

	// Every bad value is reported, not just the first.
	_, err = NewFromParams(p, &belief, parameters.NewFromConfigString("block_size=x,c=y"))
	require.ErrorContains(t, err, "block_size")
	require.ErrorContains(t, err, "c=")
}

func TestNewFromParamsSearchRuns(t *testing.T) {
	p := problem.Adapt[problemtest.BiasedMDPState, string](problemtest.BiasedMDP{})
	belief := p.StartState()
	s, err := NewFromParams(p, &belief, parameters.NewFromConfigString("bandit=uct,c=1.4,limit=2000"))
	require.NoError(t, err)
	s.Run(context.Background(), s.NewWorkers(1)[0])
	policy := s.GetPolicy()
	require.Len(t, policy, 2)
	require.InDelta(t, 1.0, policyShareSum(policy), 1e-3)
}
