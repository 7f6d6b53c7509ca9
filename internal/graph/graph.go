// Package graph is the explorer's map of the API's reachable state space:
// state dedup, valid-action filtering, the unexplored frontier, transition
// recording, and the shortest-path query used for violation reproduction. It
// operates purely on internal/core types.
package graph

import (
	"sort"
	"sync"

	"github.com/venomqa/venomqa/internal/core"
	"github.com/venomqa/venomqa/internal/state"
)

// Pair is a (state ID, action name) tuple — an edge the Graph knows is valid
// but has not necessarily been executed (the frontier), or one that has (an
// explored flag per Pair).
type Pair struct {
	StateID    string
	ActionName string
}

// Graph is the explorer's map of the API's reachable state space. Safe for
// concurrent notify/query calls, though the Agent's loop is itself
// single-threaded — the locking here guards against strategies that inspect the
// Graph from a background goroutine (e.g. a live-progress reporter).
type Graph struct {
	mu sync.RWMutex

	states      map[string]core.State
	transitions []core.Transition
	actions     map[string]*core.Action
	initialID   string

	explored  map[Pair]bool
	callCount map[Pair]int

	// adjacency is derived bookkeeping for the shortest-path BFS: for each state
	// ID, the list of (action name, to-state ID) edges leaving it.
	adjacency map[string][]edge
}

type edge struct {
	action string
	to     string
}

func New() *Graph {
	return &Graph{
		states:    make(map[string]core.State),
		actions:   make(map[string]*core.Action),
		explored:  make(map[Pair]bool),
		callCount: make(map[Pair]int),
		adjacency: make(map[string][]edge),
	}
}

// RegisterAction adds an Action definition. Duplicate names are a
// ConfigurationError.
func (g *Graph) RegisterAction(a *core.Action) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.actions[a.Name]; exists {
		return &core.ConfigurationError{Reason: "duplicate action name: " + a.Name}
	}
	g.actions[a.Name] = a
	return nil
}

// ActionByName looks up a registered Action by name.
func (g *Graph) ActionByName(name string) (*core.Action, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.actions[name]
	return a, ok
}

func (g *Graph) Actions() []*core.Action {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*core.Action, 0, len(g.actions))
	for _, a := range g.actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AddState hashes obs and, if the resulting ID already exists, returns the
// canonical existing State instead of creating a new node. The bool return
// reports whether this call created a new node.
func (g *Graph) AddState(obs []core.Observation) (core.State, bool) {
	id := state.CanonicalID(obs)
	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.states[id]; ok {
		return existing, false
	}
	s := state.NewState(obs)
	g.states[id] = s
	return s, true
}

// AttachCheckpoint records the checkpoint taken for a given state, once it
// becomes available (the Agent takes the checkpoint right after observing).
func (g *Graph) AttachCheckpoint(stateID string, cp *core.Checkpoint) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.states[stateID]
	if !ok || s.Checkpoint != nil {
		return
	}
	s.Checkpoint = cp
	g.states[stateID] = s
}

func (g *Graph) SetInitial(stateID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initialID = stateID
}

func (g *Graph) InitialStateID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.initialID
}

func (g *Graph) State(id string) (core.State, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.states[id]
	return s, ok
}

func (g *Graph) StateCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.states)
}

// AddTransition is append-only. It also updates the adjacency index used by
// ShortestPath and marks the (from, action) pair explored.
func (g *Graph) AddTransition(t core.Transition) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transitions = append(g.transitions, t)
	g.adjacency[t.FromStateID] = append(g.adjacency[t.FromStateID], edge{action: t.ActionName, to: t.ToStateID})
	pair := Pair{StateID: t.FromStateID, ActionName: t.ActionName}
	g.explored[pair] = true
	g.callCount[pair]++
}

func (g *Graph) Transitions() []core.Transition {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]core.Transition, len(g.transitions))
	copy(out, g.transitions)
	return out
}

// MarkExplored records that (stateID, actionName) has been tried, even when no
// transition resulted (the action was skipped), so the Agent does not retry it
// from the same state.
func (g *Graph) MarkExplored(stateID, actionName string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.explored[Pair{StateID: stateID, ActionName: actionName}] = true
}

func (g *Graph) IsExplored(stateID, actionName string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.explored[Pair{StateID: stateID, ActionName: actionName}]
}

func (g *Graph) CallCount(stateID, actionName string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.callCount[Pair{StateID: stateID, ActionName: actionName}]
}

// ValidActions returns the subset of registered Actions that may be dispatched
// from s given ctx's action history: preconditions satisfied, the Requires map
// matched against s's observations, and per-state call count below MaxCalls.
func (g *Graph) ValidActions(s core.State, ctx *core.Context) []*core.Action {
	g.mu.RLock()
	names := make([]string, 0, len(g.actions))
	for n := range g.actions {
		names = append(names, n)
	}
	sort.Strings(names)
	g.mu.RUnlock()

	observed := indexObservations(s.Observations)

	var out []*core.Action
	for _, n := range names {
		g.mu.RLock()
		a := g.actions[n]
		g.mu.RUnlock()
		if canExecute(a, s.ID, ctx, observed, g.CallCount(s.ID, a.Name)) {
			out = append(out, a)
		}
	}
	return out
}

func canExecute(a *core.Action, stateID string, ctx *core.Context, observed map[string]map[string]core.Value, calls int) bool {
	for _, pre := range a.Preconditions {
		if !ctx.HasExecuted(pre) {
			return false
		}
	}
	for system, field := range a.Requires {
		// Requires maps a logical resource name -> required status; we interpret
		// "system" as an observed system name and "field" as the value that
		// system's "status" field must hold.
		sysData, ok := observed[system]
		if !ok {
			return false
		}
		v, ok := sysData["status"]
		if !ok {
			return false
		}
		s, ok := v.AsString()
		if !ok || s != field {
			return false
		}
	}
	if a.MaxCalls > 0 && calls >= a.MaxCalls {
		return false
	}
	return true
}

func indexObservations(obs []core.Observation) map[string]map[string]core.Value {
	out := make(map[string]map[string]core.Value, len(obs))
	for _, o := range obs {
		out[o.System] = o.Data
	}
	return out
}

// Frontier returns the deterministically ordered set of (state, action) pairs
// that are valid for each known state but not yet explored: state-ID order,
// then action-name order within each state. Individual Strategies reorder or
// filter this further according to their own policy.
func (g *Graph) Frontier() []Pair {
	g.mu.RLock()
	stateIDs := make([]string, 0, len(g.states))
	for id := range g.states {
		stateIDs = append(stateIDs, id)
	}
	sort.Strings(stateIDs)
	g.mu.RUnlock()

	var out []Pair
	for _, id := range stateIDs {
		s, _ := g.State(id)
		for _, a := range g.ValidActionsIgnoringHistory(s) {
			pair := Pair{StateID: id, ActionName: a.Name}
			if !g.IsExplored(id, a.Name) {
				out = append(out, pair)
			}
		}
	}
	return out
}

// ValidActionsIgnoringHistory applies the Requires/MaxCalls filters but not the
// action-history precondition filter, since the frontier is a state-scoped (not
// path-scoped) structure and preconditions are evaluated against the live
// Context at dispatch time by the Agent instead.
func (g *Graph) ValidActionsIgnoringHistory(s core.State) []*core.Action {
	g.mu.RLock()
	names := make([]string, 0, len(g.actions))
	for n := range g.actions {
		names = append(names, n)
	}
	sort.Strings(names)
	g.mu.RUnlock()

	observed := indexObservations(s.Observations)
	var out []*core.Action
	for _, n := range names {
		g.mu.RLock()
		a := g.actions[n]
		g.mu.RUnlock()
		ok := true
		for system, field := range a.Requires {
			sysData, present := observed[system]
			if !present {
				ok = false
				break
			}
			v, present := sysData["status"]
			if !present {
				ok = false
				break
			}
			str, isStr := v.AsString()
			if !isStr || str != field {
				ok = false
				break
			}
		}
		if ok && a.MaxCalls > 0 && g.CallCount(s.ID, a.Name) >= a.MaxCalls {
			ok = false
		}
		if ok {
			out = append(out, a)
		}
	}
	return out
}

// ShortestPath runs BFS over recorded transitions from the initial state to
// target, returning the ordered list of action names. Returns nil if target is
// unreached or target is the initial state itself (empty reproduction path).
func (g *Graph) ShortestPath(target string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if target == g.initialID || g.initialID == "" {
		return nil
	}

	type frame struct {
		state string
		path  []string
	}
	visited := map[string]bool{g.initialID: true}
	queue := []frame{{state: g.initialID}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		edges := append([]edge(nil), g.adjacency[cur.state]...)
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].action != edges[j].action {
				return edges[i].action < edges[j].action
			}
			return edges[i].to < edges[j].to
		})

		for _, e := range edges {
			if visited[e.to] {
				continue
			}
			visited[e.to] = true
			newPath := append(append([]string(nil), cur.path...), e.action)
			if e.to == target {
				return newPath
			}
			queue = append(queue, frame{state: e.to, path: newPath})
		}
	}
	return nil
}
