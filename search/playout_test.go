package search

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcforest/mcforest/problem"
	"github.com/mcforest/mcforest/problem/problemtest"
)

// Scenario: two-state POMDP with one observation per action. Starting
// from a uniform belief, the playout's belief collapses onto the state
// named by each observation, and the search learns to prefer "a".
func TestPlayoutTwoStatePOMDP(t *testing.T) {
	pomdp := problemtest.TwoStatePOMDP{Horizon: 3, Rng: rand.New(rand.NewSource(7))}
	playout := &Playout[problemtest.TwoStatePOMDPState, problemtest.TwoStatePOMDPBelief, string, int]{
		Problem:        pomdp,
		Bandit:         UCT[problemtest.TwoStatePOMDPState, string, int]{C: 1.4},
		Expansion:      EmptyInit[problemtest.TwoStatePOMDPState, problemtest.TwoStatePOMDPBelief, string, int]{},
		MaxSimulations: 2000,
	}
	steps, err := playout.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, steps, 3)

	for _, step := range steps {
		require.Equal(t, problem.Agent(0), step.Agent)
		require.Len(t, step.Rewards, 1)
		require.Len(t, step.Observations, 1)
		require.InDelta(t, 1.0, policyShareSum(step.Policy), 1e-3)

		// One observation per action: "a" leads to state 1, "b" to 0.
		want := 0
		if step.Action == "a" {
			want = 1
		}
		require.Equal(t, want, step.Observations[0])

		// The +1-per-step arm dominates at temperature 0.
		require.Equal(t, "a", step.Action)
		require.Equal(t, float32(1), step.Rewards[0])
	}
}

func TestPlayoutBeliefCollapse(t *testing.T) {
	pomdp := problemtest.TwoStatePOMDP{Horizon: 3}
	belief := pomdp.StartState()
	require.InDelta(t, 0.5, belief.P1, 1e-6)
	pomdp.BeliefUpdate(&belief, 1)
	require.Equal(t, float32(1), belief.P1)
	pomdp.BeliefUpdate(&belief, 0)
	require.Equal(t, float32(0), belief.P1)
}

func TestPlayoutTicTacToeFullGame(t *testing.T) {
	playout := &Playout[problemtest.TicTacToeState, problemtest.TicTacToeState, int, int]{
		Problem:        newTTT(),
		Bandit:         UCT[problemtest.TicTacToeState, int, int]{C: 2.4},
		Expansion:      EmptyInit[problemtest.TicTacToeState, problemtest.TicTacToeState, int, int]{},
		MaxSimulations: 300,
		Temperature:    1,
		Rng:            rand.New(rand.NewSource(3)),
	}
	steps, err := playout.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, steps)
	require.LessOrEqual(t, len(steps), 9)

	// Agents alternate from the first player.
	for i, step := range steps {
		require.Equal(t, problem.Agent(i%2), step.Agent)
		require.Len(t, step.Rewards, 2)
	}

	// A finished tic-tac-toe game is a win or a draw: terminal rewards
	// are zero-sum.
	last := steps[len(steps)-1]
	require.InDelta(t, 0.0, last.Rewards[0]+last.Rewards[1], 1e-6)
}

func TestPlayoutMaxMoves(t *testing.T) {
	playout := &Playout[problemtest.TicTacToeState, problemtest.TicTacToeState, int, int]{
		Problem:        newTTT(),
		Bandit:         UCT[problemtest.TicTacToeState, int, int]{C: 2.4},
		Expansion:      EmptyInit[problemtest.TicTacToeState, problemtest.TicTacToeState, int, int]{},
		MaxSimulations: 100,
		MaxMoves:       2,
	}
	steps, err := playout.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, steps, 2)
}

func TestPlayoutValidation(t *testing.T) {
	playout := &Playout[problemtest.TicTacToeState, problemtest.TicTacToeState, int, int]{
		Temperature: -1,
	}
	_, err := playout.Run(context.Background())
	require.Error(t, err)
	// All configuration problems are reported at once.
	require.Contains(t, err.Error(), "Problem is required")
	require.Contains(t, err.Error(), "Bandit is required")
	require.Contains(t, err.Error(), "Expansion is required")
	require.Contains(t, err.Error(), "MaxSimulations or MaxTime")
	require.Contains(t, err.Error(), "temperature")
}

func TestPlayoutCancel(t *testing.T) {
	playout := &Playout[problemtest.TicTacToeState, problemtest.TicTacToeState, int, int]{
		Problem:        newTTT(),
		Bandit:         UCT[problemtest.TicTacToeState, int, int]{C: 2.4},
		Expansion:      EmptyInit[problemtest.TicTacToeState, problemtest.TicTacToeState, int, int]{},
		MaxSimulations: 100,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	steps, err := playout.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, steps)
}
