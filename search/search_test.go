package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcforest/mcforest/problem"
	"github.com/mcforest/mcforest/problem/problemtest"
)

type tttProblem = problem.Problem[problemtest.TicTacToeState, problemtest.TicTacToeState, int, int]

func newTTT() tttProblem {
	return problem.Adapt[problemtest.TicTacToeState, int](problemtest.TicTacToe{})
}

func policyShareSum[A int | string](policy []ActionStat[A]) float32 {
	var sum float32
	for _, stat := range policy {
		sum += stat.Share
	}
	return sum
}

// Scenario: deterministic two-agent game, UCT(c=2.4), block_size=1,
// limit=1000. The shares must sum to 1 and the policy must cover the
// board.
func TestSearchTicTacToeUCT(t *testing.T) {
	p := newTTT()
	belief := p.StartState()
	s := New(p, &belief, 1, IterationLimit(1000),
		UCT[problemtest.TicTacToeState, int, int]{C: 2.4},
		EmptyInit[problemtest.TicTacToeState, problemtest.TicTacToeState, int, int]{})
	s.Run(context.Background(), s.NewWorkers(1)[0])

	require.GreaterOrEqual(t, s.RootSelectCount(), uint32(1000))
	policy := s.GetPolicy()
	require.Len(t, policy, 9)
	require.InDelta(t, 1.0, policyShareSum(policy), 1e-3)

	var best ActionStat[int]
	for _, stat := range policy {
		if stat.Share > best.Share {
			best = stat
		}
	}
	require.Greater(t, best.Share, float32(0))
}

// Scenario: single-state two-action MDP with rewards {a:+1, b:-1},
// EmptyInit, limit=10000: the good arm dominates the policy.
func TestSearchBiasedMDP(t *testing.T) {
	p := problem.Adapt[problemtest.BiasedMDPState, string](problemtest.BiasedMDP{})
	belief := p.StartState()
	s := New(p, &belief, 1, IterationLimit(10000),
		UCT[problemtest.BiasedMDPState, string, string]{C: 1.4},
		EmptyInit[problemtest.BiasedMDPState, problemtest.BiasedMDPState, string, string]{})
	s.Run(context.Background(), s.NewWorkers(1)[0])

	policy := s.GetPolicy()
	require.Len(t, policy, 2)
	require.InDelta(t, 1.0, policyShareSum(policy), 1e-3)
	for _, stat := range policy {
		if stat.Action == "a" {
			require.Greater(t, stat.Share, float32(0.9))
			require.Greater(t, stat.Value, float32(0.5))
		}
	}
}

// Scenario: the start state is terminal. The search returns an empty
// policy and the forest holds only the untouched roots.
func TestSearchTerminalAtRoot(t *testing.T) {
	var p problem.Problem[problemtest.TwoStatePOMDPState, problemtest.TwoStatePOMDPBelief, string, int] =
		problemtest.TwoStatePOMDP{Horizon: 0}
	belief := p.StartState()
	s := New(p, &belief, 4, IterationLimit(100),
		UCT[problemtest.TwoStatePOMDPState, string, int]{C: 1.4},
		EmptyInit[problemtest.TwoStatePOMDPState, problemtest.TwoStatePOMDPBelief, string, int]{})
	require.NoError(t, s.RunParallel(context.Background(), s.NewWorkers(2)))

	require.Empty(t, s.GetPolicy())
	require.Equal(t, uint32(0), s.RootSelectCount())
	require.Equal(t, 1, s.ForestLen(), "only the roots may exist")
}

// zeroGame is a two-step single-agent game with all rewards zero.
type zeroGameState struct {
	Step int8
}

type zeroGame struct{}

func (zeroGame) Agents() []problem.Agent { return []problem.Agent{0} }
func (zeroGame) StartState() zeroGameState { return zeroGameState{} }
func (zeroGame) CloneState(s *zeroGameState) zeroGameState { return *s }
func (zeroGame) AgentToAct(*zeroGameState) problem.Agent { return 0 }
func (zeroGame) CheckTerminal(s *zeroGameState) bool { return s.Step >= 2 }
func (zeroGame) LegalActions(*zeroGameState) []int { return []int{0, 1} }
func (zeroGame) Discount() float32 { return 1 }

func (zeroGame) ApplyAction(s *zeroGameState, _ int) []float32 {
	s.Step++
	return []float32{0}
}

// With EmptyInit and zero rewards everywhere, all action values are 0
// and the bounds never acquire width.
func TestSearchZeroRewardsLeaveBoundsFlat(t *testing.T) {
	p := problem.Adapt[zeroGameState, int](zeroGame{})
	belief := p.StartState()
	s := New(p, &belief, 2, IterationLimit(500),
		UCT[zeroGameState, int, int]{C: 1.4},
		EmptyInit[zeroGameState, zeroGameState, int, int]{})
	s.Run(context.Background(), s.NewWorkers(1)[0])

	for _, stat := range s.GetPolicy() {
		require.Equal(t, float32(0), stat.Value)
	}
	for _, bounds := range s.Bounds() {
		require.Equal(t, float32(0), bounds.Width())
	}
}

// Backpropagating a trajectory that never left the roots is legal: the
// zero vector lands as a value sample on each root, select counts stay
// untouched and zero values add no width to the bounds.
func TestBackpropagateEmptyBranch(t *testing.T) {
	p := newTTT()
	belief := p.StartState()
	s := New(p, &belief, 1, IterationLimit(10),
		UCT[problemtest.TicTacToeState, int, int]{C: 2.4},
		EmptyInit[problemtest.TicTacToeState, problemtest.TicTacToeState, int, int]{})

	traj := newTrajectory[int](s.roots)
	s.backpropagate(&traj, []float32{0, 0})
	require.Equal(t, uint32(0), s.RootSelectCount())
	for _, bounds := range s.Bounds() {
		require.Equal(t, float32(0), bounds.Width())
	}

	traj = newTrajectory[int](s.roots)
	s.backpropagate(&traj, []float32{1, -1})
	bounds := s.Bounds()
	require.InDelta(t, 1.0, bounds[0].Width(), 1e-6)
	require.InDelta(t, 1.0, bounds[1].Width(), 1e-6)
}

// Scenario: random-rollout init on a forced win-in-one: the winning
// action's value must be strictly greater than the alternative's.
func TestSearchForcedWinRollout(t *testing.T) {
	p := problem.Adapt[problemtest.ForcedWinState, int](problemtest.ForcedWin{})
	belief := p.StartState()
	s := New(p, &belief, 1, IterationLimit(200),
		UCT[problemtest.ForcedWinState, int, int]{C: 1.4},
		RandomRollout[problemtest.ForcedWinState, problemtest.ForcedWinState, int, int]{Horizon: 8})
	s.Run(context.Background(), s.NewWorkers(1)[0])

	policy := s.GetPolicy()
	require.Len(t, policy, 2)
	values := map[int]float32{}
	for _, stat := range policy {
		values[stat.Action] = stat.Value
	}
	require.Greater(t, values[0], values[1])
}

// Scenario: 8 workers with block_size=32 on tic-tac-toe: the final root
// select count overshoots the limit by at most workers*block_size, and
// the policy still normalizes.
func TestSearchConcurrencyStress(t *testing.T) {
	const (
		workers   = 8
		blockSize = 32
		limit     = 10000
	)
	p := newTTT()
	belief := p.StartState()
	s := New(p, &belief, blockSize, IterationLimit(limit),
		UCT[problemtest.TicTacToeState, int, int]{C: 2.4},
		EmptyInit[problemtest.TicTacToeState, problemtest.TicTacToeState, int, int]{})
	require.NoError(t, s.RunParallel(context.Background(), s.NewWorkers(workers)))

	rootCount := s.RootSelectCount()
	require.GreaterOrEqual(t, rootCount, uint32(limit))
	require.LessOrEqual(t, rootCount, uint32(limit+workers*blockSize))
	require.InDelta(t, 1.0, policyShareSum(s.GetPolicy()), 1e-3)
}

// A one-arm problem always yields the single action with share 1.
func TestSearchOneArm(t *testing.T) {
	p := problem.Adapt[problemtest.BiasedMDPState, string](problemtest.OneArm{})
	belief := p.StartState()
	s := New(p, &belief, 1, IterationLimit(100),
		UCT[problemtest.BiasedMDPState, string, string]{C: 1.4},
		EmptyInit[problemtest.BiasedMDPState, problemtest.BiasedMDPState, string, string]{})
	s.Run(context.Background(), s.NewWorkers(1)[0])

	policy := s.GetPolicy()
	require.Len(t, policy, 1)
	require.Equal(t, "pull", policy[0].Action)
	require.InDelta(t, 1.0, policy[0].Share, 1e-6)
}

// Cancellation stops workers between block passes.
func TestSearchContextCancel(t *testing.T) {
	p := newTTT()
	belief := p.StartState()
	s := New(p, &belief, 1, IterationLimit(1<<30),
		UCT[problemtest.TicTacToeState, int, int]{C: 2.4},
		EmptyInit[problemtest.TicTacToeState, problemtest.TicTacToeState, int, int]{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.RunParallel(ctx, s.NewWorkers(2)))
}

// The search renders to DOT after running.
func TestSearchRenderDOT(t *testing.T) {
	p := newTTT()
	belief := p.StartState()
	s := New(p, &belief, 1, IterationLimit(50),
		UCT[problemtest.TicTacToeState, int, int]{C: 2.4},
		EmptyInit[problemtest.TicTacToeState, problemtest.TicTacToeState, int, int]{})
	s.Run(context.Background(), s.NewWorkers(1)[0])

	dot, err := s.RenderDOT(1, 2)
	require.NoError(t, err)
	require.Contains(t, dot, "digraph")
}
