// Package problemtest provides small synthetic problems used to test the
// search engine: a tic-tac-toe game, a couple of one-shot decision
// problems and a two-state POMDP.
package problemtest

import (
	"math/rand"

	"github.com/mcforest/mcforest/problem"
)

// TicTacToeState is a 3x3 board. The zero value is the empty board with
// the first player to move.
type TicTacToeState struct {
	// Cells hold 0 for empty, 1 for the first player, 2 for the second.
	Cells  [9]int8
	Next   problem.Agent
	Moves  int8
	Winner int8 // 0 while undecided, otherwise 1 or 2
}

// TicTacToe is a fully-observable two-agent zero-sum game. Actions are
// cell indices 0..8. The winner receives +1, the loser -1, draws 0.
type TicTacToe struct{}

var tttLines = [8][3]int8{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

func (TicTacToe) Agents() []problem.Agent { return []problem.Agent{0, 1} }

func (TicTacToe) StartState() TicTacToeState { return TicTacToeState{} }

func (TicTacToe) CloneState(s *TicTacToeState) TicTacToeState { return *s }

func (TicTacToe) AgentToAct(s *TicTacToeState) problem.Agent { return s.Next }

func (TicTacToe) CheckTerminal(s *TicTacToeState) bool {
	return s.Winner != 0 || s.Moves == 9
}

func (TicTacToe) LegalActions(s *TicTacToeState) []int {
	actions := make([]int, 0, 9-s.Moves)
	for i, c := range s.Cells {
		if c == 0 {
			actions = append(actions, i)
		}
	}
	return actions
}

func (TicTacToe) ApplyAction(s *TicTacToeState, action int) []float32 {
	mark := int8(s.Next) + 1
	s.Cells[action] = mark
	s.Moves++
	s.Next = 1 - s.Next
	for _, line := range tttLines {
		if s.Cells[line[0]] == mark && s.Cells[line[1]] == mark && s.Cells[line[2]] == mark {
			s.Winner = mark
			break
		}
	}
	rewards := make([]float32, 2)
	if s.Winner != 0 {
		rewards[s.Winner-1] = 1
		rewards[2-s.Winner] = -1
	}
	return rewards
}

func (TicTacToe) Discount() float32 { return 1 }

// BiasedMDPState counts the single step of the one-shot decision.
type BiasedMDPState struct {
	Done bool
}

// BiasedMDP is a single-agent, single-state MDP with two actions: "a"
// pays +1 and "b" pays -1, and either ends the episode.
type BiasedMDP struct{}

func (BiasedMDP) Agents() []problem.Agent { return []problem.Agent{0} }
func (BiasedMDP) StartState() BiasedMDPState { return BiasedMDPState{} }
func (BiasedMDP) CloneState(s *BiasedMDPState) BiasedMDPState { return *s }
func (BiasedMDP) AgentToAct(*BiasedMDPState) problem.Agent { return 0 }
func (BiasedMDP) CheckTerminal(s *BiasedMDPState) bool { return s.Done }
func (BiasedMDP) LegalActions(*BiasedMDPState) []string { return []string{"a", "b"} }
func (BiasedMDP) Discount() float32 { return 1 }

func (BiasedMDP) ApplyAction(s *BiasedMDPState, action string) []float32 {
	s.Done = true
	if action == "a" {
		return []float32{1}
	}
	return []float32{-1}
}

// OneArm is a single-agent problem with exactly one legal action, which
// ends the episode with reward +1.
type OneArm struct{}

func (OneArm) Agents() []problem.Agent { return []problem.Agent{0} }
func (OneArm) StartState() BiasedMDPState { return BiasedMDPState{} }
func (OneArm) CloneState(s *BiasedMDPState) BiasedMDPState { return *s }
func (OneArm) AgentToAct(*BiasedMDPState) problem.Agent { return 0 }
func (OneArm) CheckTerminal(s *BiasedMDPState) bool { return s.Done }
func (OneArm) LegalActions(*BiasedMDPState) []string { return []string{"pull"} }
func (OneArm) Discount() float32 { return 1 }

func (OneArm) ApplyAction(s *BiasedMDPState, _ string) []float32 {
	s.Done = true
	return []float32{1}
}

// ForcedWinState tracks the position of the tiny two-player game below.
type ForcedWinState struct {
	// Phase 0: first player to move. Phase 1: second player to move.
	// Phase 2: terminal.
	Phase int8
}

// ForcedWin is a two-player zero-sum game where the first player has an
// immediate winning action (0) and a losing alternative (1): declining
// the win hands the opponent a forced win of its own.
type ForcedWin struct{}

func (ForcedWin) Agents() []problem.Agent { return []problem.Agent{0, 1} }
func (ForcedWin) StartState() ForcedWinState { return ForcedWinState{} }
func (ForcedWin) CloneState(s *ForcedWinState) ForcedWinState { return *s }
func (ForcedWin) CheckTerminal(s *ForcedWinState) bool { return s.Phase == 2 }
func (ForcedWin) Discount() float32 { return 1 }

func (ForcedWin) AgentToAct(s *ForcedWinState) problem.Agent {
	if s.Phase == 1 {
		return 1
	}
	return 0
}

func (ForcedWin) LegalActions(s *ForcedWinState) []int {
	if s.Phase == 0 {
		return []int{0, 1}
	}
	return []int{0}
}

func (ForcedWin) ApplyAction(s *ForcedWinState, action int) []float32 {
	if s.Phase == 0 {
		if action == 0 {
			s.Phase = 2
			return []float32{1, -1}
		}
		s.Phase = 1
		return []float32{0, 0}
	}
	s.Phase = 2
	return []float32{-1, 1}
}

// TwoStatePOMDPState is the hidden state: a location in {0, 1} and the
// number of steps taken.
type TwoStatePOMDPState struct {
	Loc   int8
	Steps int8
}

// TwoStatePOMDPBelief carries the probability of being at location 1.
type TwoStatePOMDPBelief struct {
	P1    float32
	Steps int8
}

// TwoStatePOMDP is a single-agent POMDP over two locations. Action "a"
// moves to location 1, action "b" to location 0; the emitted observation
// is the new location, so one observation identifies the successor
// exactly. Being at location 1 pays +1 per step. Episodes run for
// Horizon steps.
type TwoStatePOMDP struct {
	Horizon int8
	// Rng drives hidden-state sampling; the global source is used if nil.
	Rng *rand.Rand
}

func (TwoStatePOMDP) Agents() []problem.Agent { return []problem.Agent{0} }

func (p TwoStatePOMDP) StartState() TwoStatePOMDPBelief {
	return TwoStatePOMDPBelief{P1: 0.5}
}

func (p TwoStatePOMDP) AgentToAct(*TwoStatePOMDPState) problem.Agent { return 0 }

func (p TwoStatePOMDP) CheckTerminal(h *TwoStatePOMDPState) bool {
	return h.Steps >= p.Horizon
}

func (TwoStatePOMDP) LegalActions(*TwoStatePOMDPState) []string {
	return []string{"a", "b"}
}

func (TwoStatePOMDP) CloneHState(h *TwoStatePOMDPState) TwoStatePOMDPState { return *h }

func (TwoStatePOMDP) Discount() float32 { return 1 }

func (p TwoStatePOMDP) ApplyAction(h *TwoStatePOMDPState, action string) []problem.Outcome[int] {
	if action == "a" {
		h.Loc = 1
	} else {
		h.Loc = 0
	}
	h.Steps++
	var reward float32
	if h.Loc == 1 {
		reward = 1
	}
	return []problem.Outcome[int]{{Reward: reward, Observation: int(h.Loc)}}
}

func (p TwoStatePOMDP) BeliefUpdate(b *TwoStatePOMDPBelief, obs int) {
	if obs == 1 {
		b.P1 = 1
	} else {
		b.P1 = 0
	}
	b.Steps++
}

func (p TwoStatePOMDP) SampleHState(b *TwoStatePOMDPBelief) TwoStatePOMDPState {
	roll := rand.Float32()
	if p.Rng != nil {
		roll = p.Rng.Float32()
	}
	state := TwoStatePOMDPState{Steps: b.Steps}
	if roll < b.P1 {
		state.Loc = 1
	}
	return state
}

// SampleHStateBatched implements problem.Batched.
func (p TwoStatePOMDP) SampleHStateBatched(b *TwoStatePOMDPBelief, count int) []TwoStatePOMDPState {
	states := make([]TwoStatePOMDPState, count)
	for i := range states {
		states[i] = p.SampleHState(b)
	}
	return states
}

// ApplyActionBatched implements problem.Batched.
func (p TwoStatePOMDP) ApplyActionBatched(hs []TwoStatePOMDPState, actions []string) [][]problem.Outcome[int] {
	outcomes := make([][]problem.Outcome[int], len(hs))
	for i := range hs {
		outcomes[i] = p.ApplyAction(&hs[i], actions[i])
	}
	return outcomes
}
