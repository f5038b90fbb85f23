// Package search implements a concurrent Monte-Carlo Tree Search over an
// abstract problem: a multi-rooted arena forest (one tree per agent), a
// batched select/apply/descend pipeline run by parallel workers, and
// pluggable bandit and expansion strategies.
//
// The only state shared between workers is the forest and the per-agent
// score bounds, each behind its own RWMutex. A worker alternates between
// a read critical section (action selection over a whole block of
// trajectories), lock-free batched problem calls, and a single write
// critical section covering backpropagation, expansion installs and the
// descent of the whole block.
package search

import (
	"cmp"
	"context"
	"sync"

	"github.com/gomlx/exceptions"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/mcforest/mcforest/forest"
	"github.com/mcforest/mcforest/problem"
	"github.com/mcforest/mcforest/stats"
)

// forestCapacity is the initial node capacity of a fresh forest.
const forestCapacity = 800

// ActionStat is one row of the root policy reported by GetPolicy.
type ActionStat[A cmp.Ordered] struct {
	Action A
	// Share is the fraction of root visits that selected Action.
	Share float32
	// Value is the action's estimated value: mean immediate reward plus
	// mean successor value.
	Value float32
}

// Search drives MCTS for one belief state. Create one with New, spawn
// workers with NewWorkers and drive them with Run or RunParallel, then
// read the result off GetPolicy.
type Search[H, B any, A, O cmp.Ordered] struct {
	problem   problem.Problem[H, B, A, O]
	belief    *B
	blockSize int
	limit     Limit
	bandit    Bandit[H, A, O]
	expansion Expansion[H, B, A, O]

	agentCount int

	mu     sync.RWMutex // guards forest
	forest *forest.Forest[A, O]
	roots  []forest.NodeID

	boundsMu sync.RWMutex // guards bounds
	bounds   []stats.Bounds
}

// New builds a search over the given problem and belief. blockSize is
// the number of trajectories each worker advances in lockstep and the
// batching unit for expansion; limit stops the search; bandit and
// expansion choose the in-tree policy and the new-node seeding.
func New[H, B any, A, O cmp.Ordered](
	p problem.Problem[H, B, A, O], belief *B, blockSize int, limit Limit,
	bandit Bandit[H, A, O], expansion Expansion[H, B, A, O],
) *Search[H, B, A, O] {
	agentCount := len(p.Agents())
	if agentCount == 0 {
		exceptions.Panicf("search: problem reports no agents")
	}
	if blockSize < 1 {
		blockSize = 1
	}
	f := forest.New[A, O](forestCapacity)
	for range agentCount {
		f.NewRoot()
	}
	return &Search[H, B, A, O]{
		problem:    p,
		belief:     belief,
		blockSize:  blockSize,
		limit:      limit,
		bandit:     bandit,
		expansion:  expansion,
		agentCount: agentCount,
		forest:     f,
		roots:      f.Roots(),
		bounds:     make([]stats.Bounds, agentCount),
	}
}

// NewWorkers creates count workers, each with blockSize hidden states
// sampled from the belief and trajectories standing at the roots.
func (s *Search[H, B, A, O]) NewWorkers(count int) []*Worker[H, A, O] {
	workers := make([]*Worker[H, A, O], count)
	for w := range workers {
		trajectories := make([]trajectory[A], s.blockSize)
		for i := range trajectories {
			trajectories[i] = newTrajectory[A](s.roots)
		}
		workers[w] = &Worker[H, A, O]{
			statesInFlight:       problem.SampleHStateBatched(s.problem, s.belief, s.blockSize),
			trajectoriesInFlight: trajectories,
			agents:               make([]int, s.blockSize),
			actions:              make([]A, s.blockSize),
			bounds:               make([]stats.Bounds, s.agentCount),
		}
	}
	return workers
}

// RunParallel spawns one goroutine per worker and blocks until all of
// them have exhausted the limit or ctx is cancelled.
func (s *Search[H, B, A, O]) RunParallel(ctx context.Context, workers []*Worker[H, A, O]) error {
	if len(workers) == 0 {
		return nil
	}
	var group errgroup.Group
	group.SetLimit(len(workers))
	for _, w := range workers {
		group.Go(func() error {
			s.Run(ctx, w)
			return ctx.Err()
		})
	}
	err := group.Wait()
	if klog.V(1).Enabled() {
		s.mu.RLock()
		klog.Infof("search finished: root visits=%d, forest nodes=%d",
			s.forest.Node(s.roots[0]).SelectCount(), s.forest.Len())
		s.mu.RUnlock()
	}
	if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		return err
	}
	return nil
}

// Run advances one worker until the limit is exhausted, the context is
// cancelled, or a hidden state freshly sampled from the belief is
// terminal.
// Run may be called from multiple goroutines concurrently, one worker
// each.
func (s *Search[H, B, A, O]) Run(ctx context.Context, w *Worker[H, A, O]) {
	if !s.initRoots(w) {
		return
	}
	for s.blockPass(ctx, w) {
	}
}

// initRoots materializes actions and priors on the root nodes the
// worker's initial states act at. It reports false when any sampled
// state is terminal, in which case there is nothing to search.
func (s *Search[H, B, A, O]) initRoots(w *Worker[H, A, O]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range w.statesInFlight {
		state := &w.statesInFlight[i]
		if s.problem.CheckTerminal(state) {
			return false
		}
		agentIx := int(s.problem.AgentToAct(state))
		node := s.forest.Node(w.trajectoriesInFlight[i].current[agentIx])
		if node.ActionsCreated() {
			continue
		}
		node.CreateActions(s.legalActions(state))
		_, policy := s.expansion.Expand(s.problem, state)
		installPolicy(node, policy)
	}
	return true
}

// blockPass runs one pass of the pipeline over the worker's block: the
// pre-select check and action selection under the forest read lock, the
// batched action application with no lock held, and backprop, expansion
// and descent under the write lock. It reports whether the worker
// should keep going.
func (s *Search[H, B, A, O]) blockPass(ctx context.Context, w *Worker[H, A, O]) bool {
	if ctx.Err() != nil {
		return false
	}

	// Phase A: snapshot bounds, check the limit and select one action
	// per in-flight trajectory.
	s.boundsMu.RLock()
	copy(w.bounds, s.bounds)
	s.boundsMu.RUnlock()

	s.mu.RLock()
	if !s.limit.More(s.forest.Node(s.roots[0]).SelectCount()) {
		s.mu.RUnlock()
		return false
	}
	for i := range w.statesInFlight {
		if !s.selectFor(w, i) {
			s.mu.RUnlock()
			return false
		}
	}
	s.mu.RUnlock()

	// Phase B: advance all states through the problem, and flush the
	// expansion batch if it filled up. No lock is held for either.
	outcomes := problem.ApplyActionBatched(s.problem, w.statesInFlight, w.actions)

	var expansionValues [][]float32
	var expansionPolicies [][]ActionPrior[A]
	expand := len(w.statesAwaitingExpansion) >= s.blockSize
	if expand {
		expansionValues, expansionPolicies = s.expansion.ExpandBlock(s.problem, w.statesAwaitingExpansion)
	}

	// Phase C: mutate the forest: terminal backprops, expansion
	// installs, then the descent of the whole block.
	s.mu.Lock()
	s.boundsMu.Lock()

	for i := range w.trajectoriesAwaitingBackprop {
		s.backpropagate(&w.trajectoriesAwaitingBackprop[i], make([]float32, s.agentCount))
	}
	w.trajectoriesAwaitingBackprop = w.trajectoriesAwaitingBackprop[:0]

	for i := range w.statesAwaitingExpansion {
		state := &w.statesAwaitingExpansion[i]
		agentIx := int(s.problem.AgentToAct(state))
		node := s.forest.Node(w.trajectoriesAwaitingExpansion[i].current[agentIx])
		if !node.ActionsCreated() {
			node.CreateActions(s.legalActions(state))
		}
	}

	if expand {
		for i := range w.statesAwaitingExpansion {
			values := expansionValues[i]
			if len(values) != s.agentCount {
				exceptions.Panicf("search: expansion returned %d values for %d agents", len(values), s.agentCount)
			}
			traj := &w.trajectoriesAwaitingExpansion[i]
			s.backpropagate(traj, values)
			agentIx := int(s.problem.AgentToAct(&w.statesAwaitingExpansion[i]))
			installPolicy(s.forest.Node(traj.current[agentIx]), expansionPolicies[i])
		}
		w.statesAwaitingExpansion = w.statesAwaitingExpansion[:0]
		w.trajectoriesAwaitingExpansion = w.trajectoriesAwaitingExpansion[:0]
	}

	for i := range w.trajectoriesInFlight {
		s.descend(&w.trajectoriesInFlight[i], w.agents[i], w.actions[i], outcomes[i])
	}

	s.boundsMu.Unlock()
	s.mu.Unlock()

	if klog.V(4).Enabled() {
		klog.Infof("block pass done: %d in flight, %d awaiting expansion", len(w.statesInFlight), len(w.statesAwaitingExpansion))
	}
	return true
}

// selectFor resolves entry i of the block to an (agent, action) pair,
// restarting the trajectory on terminal states and queueing
// un-materialized frontiers for expansion. Called under the forest read
// lock. It reports false when a state freshly sampled from the belief
// is terminal, and the worker should stop.
func (s *Search[H, B, A, O]) selectFor(w *Worker[H, A, O], i int) bool {
	state := &w.statesInFlight[i]
	traj := &w.trajectoriesInFlight[i]
	restarted := false
	for {
		if s.problem.CheckTerminal(state) {
			if restarted {
				// A state freshly sampled from the belief is terminal:
				// the decision point itself is terminal and there is
				// nothing to search. The trajectory was just reset, so
				// there is nothing to backpropagate either.
				return false
			}
			w.trajectoriesAwaitingBackprop = append(w.trajectoriesAwaitingBackprop, traj.clone())
			*state = s.problem.SampleHState(s.belief)
			traj.reset(s.roots)
			restarted = true
			continue
		}
		agentIx := int(s.problem.AgentToAct(state))
		node := s.forest.Node(traj.current[agentIx])
		if !node.ActionsCreated() {
			if restarted {
				// The restart put the trajectory on a root that was
				// materialized by initRoots; reaching here means the
				// problem's acting agent is inconsistent across samples
				// of one belief.
				exceptions.Panicf("search: acting agent changed across hidden states sampled from one belief")
			}
			w.statesAwaitingExpansion = append(w.statesAwaitingExpansion, s.problem.CloneHState(state))
			w.trajectoriesAwaitingExpansion = append(w.trajectoriesAwaitingExpansion, traj.clone())
			*state = s.problem.SampleHState(s.belief)
			traj.reset(s.roots)
			restarted = true
			continue
		}
		w.agents[i] = agentIx
		w.actions[i] = s.bandit.Select(state, node, w.bounds[agentIx])
		return true
	}
}

// descend moves a trajectory one level down every agent's tree: select
// counts are incremented, the step is recorded on the branch, and each
// frontier node is replaced by its observation-child, created on demand.
// Called under the forest and bounds write locks.
func (s *Search[H, B, A, O]) descend(traj *trajectory[A], agentIx int, action A, outcomes []problem.Outcome[O]) {
	checkOutcomes(len(outcomes), s.agentCount)
	parents := make([]parentReward, len(traj.current))
	children := make([]forest.NodeID, len(traj.current))
	for ix, nodeID := range traj.current {
		node := s.forest.Node(nodeID)
		node.IncrementSelectCount()
		if ix == agentIx {
			info := node.Action(action)
			if info == nil {
				exceptions.Panicf("search: selected action is not in the node's action table")
			}
			info.IncrementSelectCount()
		}
		children[ix] = s.forest.GetOrCreateChild(nodeID, outcomes[ix].Observation)
		parents[ix] = parentReward{node: nodeID, reward: outcomes[ix].Reward}
	}
	traj.branch = append(traj.branch, branchStep[A]{parents: parents, agentIx: agentIx, action: action})
	traj.current = children
}

// backpropagate folds a bootstrap value vector into every node along
// the trajectory, accumulating rewards backwards so each level sees its
// reward-to-go, and widens the per-agent bounds with every value. The
// values slice is consumed. Called under the forest and bounds write
// locks.
func (s *Search[H, B, A, O]) backpropagate(traj *trajectory[A], values []float32) {
	for ix, nodeID := range traj.current {
		s.forest.Node(nodeID).AddValueSample(values[ix])
		s.bounds[ix].Update(values[ix])
	}
	for step := len(traj.branch) - 1; step >= 0; step-- {
		b := &traj.branch[step]
		for ix := range b.parents {
			node := s.forest.Node(b.parents[ix].node)
			if ix == b.agentIx {
				info := node.Action(b.action)
				info.AddRewardSample(b.parents[ix].reward)
				info.AddNextValueSample(values[ix])
			}
			values[ix] += b.parents[ix].reward
			node.AddValueSample(values[ix])
			s.bounds[ix].Update(values[ix])
		}
	}
}

// GetPolicy returns the root policy for the belief's acting agent: per
// action, its share of the root's visits and its estimated value. The
// policy is empty when the search never took an action (e.g. the root
// is terminal).
func (s *Search[H, B, A, O]) GetPolicy() []ActionStat[A] {
	state := s.problem.SampleHState(s.belief)
	agentIx := int(s.problem.AgentToAct(&state))

	s.mu.RLock()
	defer s.mu.RUnlock()
	root := s.forest.Node(s.roots[agentIx])
	if !root.ActionsCreated() || root.SelectCount() == 0 {
		return nil
	}
	total := float32(root.SelectCount())
	policy := make([]ActionStat[A], 0, root.NumActions())
	for action, info := range root.Actions() {
		policy = append(policy, ActionStat[A]{
			Action: action,
			Share:  float32(info.SelectCount()) / total,
			Value:  info.Value(),
		})
	}
	return policy
}

// Bounds returns a copy of the per-agent score bounds.
func (s *Search[H, B, A, O]) Bounds() []stats.Bounds {
	s.boundsMu.RLock()
	defer s.boundsMu.RUnlock()
	bounds := make([]stats.Bounds, len(s.bounds))
	copy(bounds, s.bounds)
	return bounds
}

// RootSelectCount returns the select count of the first root.
func (s *Search[H, B, A, O]) RootSelectCount() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forest.Node(s.roots[0]).SelectCount()
}

// ForestLen returns the number of nodes in the forest.
func (s *Search[H, B, A, O]) ForestLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forest.Len()
}

// RenderDOT renders the search's forest as a Graphviz DOT digraph; see
// forest.RenderDOT.
func (s *Search[H, B, A, O]) RenderDOT(theta uint32, depth int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return forest.RenderDOT(s.forest, theta, depth)
}

// legalActions fetches the legal actions for a non-terminal state,
// aborting on an empty answer per the problem contract.
func (s *Search[H, B, A, O]) legalActions(state *H) []A {
	actions := s.problem.LegalActions(state)
	if len(actions) == 0 {
		exceptions.Panicf("search: problem returned no legal actions for a non-terminal state")
	}
	return actions
}

// installPolicy overwrites the node's static policy scores with the
// expansion's answer; an empty policy keeps the uniform prior.
func installPolicy[A, O cmp.Ordered](node *forest.Node[A, O], policy []ActionPrior[A]) {
	for _, entry := range policy {
		info := node.Action(entry.Action)
		if info == nil {
			exceptions.Panicf("search: expansion returned a prior for an unknown action")
		}
		info.SetStaticPolicyScore(entry.Prior)
	}
}
