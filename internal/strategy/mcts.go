package strategy

import (
	"math"
	"math/rand"

	"github.com/venomqa/venomqa/internal/core"
	"github.com/venomqa/venomqa/internal/graph"
)

// mctsStats is the UCB1 bookkeeping for one (state, action) edge: the number of
// times it has been picked and the cumulative reward backpropagated to it.
type mctsStats struct {
	visits int
	reward float64
}

// MCTS treats the unexplored frontier as the fringe of a search tree rooted at
// the initial state — the only tree the core maintains is the Graph itself, so
// "tree" here means per-state visit counts and per-edge UCB1 scores rather than
// a separate game-tree structure. Each Pick selects the frontier edge with the
// highest UCB1 score; Notify and NotifyViolation backpropagate new_state_reward
// and violation_reward onto the edge that was last picked, since that is the
// edge responsible for the discovery.
type MCTS struct {
	explorationWeight float64
	violationReward   float64
	newStateReward    float64
	rng               *rand.Rand

	pending      []graph.Pair
	edgeStats    map[graph.Pair]*mctsStats
	stateVisits  map[string]int
	seenStates   map[string]bool
	lastPicked   graph.Pair
	hasLastPick  bool
}

func NewMCTS(explorationWeight, violationReward, newStateReward float64, seed int64) *MCTS {
	return &MCTS{
		explorationWeight: explorationWeight,
		violationReward:   violationReward,
		newStateReward:    newStateReward,
		rng:               rand.New(rand.NewSource(seed)),
		edgeStats:         make(map[graph.Pair]*mctsStats),
		stateVisits:       make(map[string]int),
		seenStates:        make(map[string]bool),
	}
}

func (m *MCTS) Name() string                 { return "mcts" }
func (m *MCTS) RequiresArbitraryOrder() bool { return true }

func (m *MCTS) Notify(stateID string, validActions []*core.Action) {
	if !m.seenStates[stateID] {
		m.seenStates[stateID] = true
		if m.hasLastPick {
			m.backpropagate(m.lastPicked, m.newStateReward)
		}
	}
	for _, a := range validActions {
		p := graph.Pair{StateID: stateID, ActionName: a.Name}
		if _, ok := m.edgeStats[p]; !ok {
			m.edgeStats[p] = &mctsStats{}
			m.pending = append(m.pending, p)
		}
	}
}

func (m *MCTS) NotifyViolation(pair graph.Pair) {
	m.backpropagate(pair, m.violationReward)
}

func (m *MCTS) backpropagate(p graph.Pair, reward float64) {
	st, ok := m.edgeStats[p]
	if !ok {
		return
	}
	st.reward += reward
}

func (m *MCTS) Pick(g *graph.Graph) (graph.Pair, bool) {
	live := m.pending[:0:0]
	for _, p := range m.pending {
		if stillValid(g, p) {
			live = append(live, p)
		}
	}
	m.pending = live
	if len(m.pending) == 0 {
		m.hasLastPick = false
		return graph.Pair{}, false
	}

	bestIdx := 0
	bestScore := math.Inf(-1)
	for i, p := range m.pending {
		score := m.ucb1(p)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	chosen := m.pending[bestIdx]
	m.pending = append(m.pending[:bestIdx], m.pending[bestIdx+1:]...)

	m.stateVisits[chosen.StateID]++
	m.edgeStats[chosen].visits++
	m.lastPicked = chosen
	m.hasLastPick = true
	return chosen, true
}

// ucb1 scores an edge by average reward plus an exploration bonus: avg_reward +
// c * sqrt(ln(N_parent) / N_node). Unvisited edges score +Inf so every edge is
// tried at least once before any is revisited.
func (m *MCTS) ucb1(p graph.Pair) float64 {
	st := m.edgeStats[p]
	if st.visits == 0 {
		return math.Inf(1)
	}
	parentVisits := m.stateVisits[p.StateID]
	avg := st.reward / float64(st.visits)
	exploration := m.explorationWeight * math.Sqrt(math.Log(float64(parentVisits))/float64(st.visits))
	return avg + exploration
}
