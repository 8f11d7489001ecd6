// File: internal/taskgraph/graph.go
// Brief: Immutable task DAG with adjacency lookups.

package taskgraph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

type Graph struct {
	tasks    []*Task
	byKey    map[Key]int
	edges    []Edge
	inbound  map[Key][]int
	outbound map[Key][]int
	waves    [][]Key

	changed  []string
	included []string
}

func newGraph() *Graph {
	return &Graph{
		byKey:    map[Key]int{},
		inbound:  map[Key][]int{},
		outbound: map[Key][]int{},
	}
}

func (g *Graph) addTask(t *Task) {
	t.Index = len(g.tasks)
	g.byKey[t.Key] = t.Index
	g.tasks = append(g.tasks, t)
}

// addEdge ignores duplicates. A duplicate with a stricter allow-failure
// flag wins.
func (g *Graph) addEdge(e Edge) {
	for _, i := range g.outbound[e.From] {
		if g.edges[i].To == e.To {
			if !e.AllowFailure {
				g.edges[i].AllowFailure = false
			}
			return
		}
	}
	idx := len(g.edges)
	g.edges = append(g.edges, e)
	g.outbound[e.From] = append(g.outbound[e.From], idx)
	g.inbound[e.To] = append(g.inbound[e.To], idx)
}

func (g *Graph) Len() int { return len(g.tasks) }

// Tasks returns every task in declaration order.
func (g *Graph) Tasks() []*Task { return append([]*Task(nil), g.tasks...) }

func (g *Graph) Task(k Key) (*Task, bool) {
	i, ok := g.byKey[k]
	if !ok {
		return nil, false
	}
	return g.tasks[i], true
}

func (g *Graph) Edges() []Edge { return append([]Edge(nil), g.edges...) }

func (g *Graph) Inbound(k Key) []Edge {
	out := make([]Edge, 0, len(g.inbound[k]))
	for _, i := range g.inbound[k] {
		out = append(out, g.edges[i])
	}
	return out
}

func (g *Graph) Outbound(k Key) []Edge {
	out := make([]Edge, 0, len(g.outbound[k]))
	for _, i := range g.outbound[k] {
		out = append(out, g.edges[i])
	}
	return out
}

// Changed lists the components whose own paths changed.
func (g *Graph) Changed() []string { return append([]string(nil), g.changed...) }

// Components lists every component present in the graph.
func (g *Graph) Components() []string { return append([]string(nil), g.included...) }

// Waves groups tasks by Kahn level. Used for display only; the scheduler
// derives readiness dynamically.
func (g *Graph) Waves() [][]Key {
	out := make([][]Key, 0, len(g.waves))
	for _, w := range g.waves {
		out = append(out, append([]Key(nil), w...))
	}
	return out
}

// Descendants returns every task reachable from k, in declaration order.
func (g *Graph) Descendants(k Key) []Key {
	seen := map[Key]struct{}{}
	var walk func(Key)
	walk = func(cur Key) {
		for _, i := range g.outbound[cur] {
			next := g.edges[i].To
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			walk(next)
		}
	}
	walk(k)
	out := make([]Key, 0, len(seen))
	for key := range seen {
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool { return g.byKey[out[i]] < g.byKey[out[j]] })
	return out
}

type fingerprintInput struct {
	Tasks []fingerprintTask `json:"tasks"`
	Edges []string          `json:"edges"`
}

type fingerprintTask struct {
	ID      string `json:"id"`
	Initial string `json:"initial"`
	Gate    bool   `json:"gate,omitempty"`
}

// Fingerprint hashes the task set and dependency structure. Two graphs built
// from the same inputs have the same fingerprint.
func (g *Graph) Fingerprint() string {
	in := fingerprintInput{}
	for _, t := range g.tasks {
		in.Tasks = append(in.Tasks, fingerprintTask{ID: t.ID(), Initial: t.InitialState.String(), Gate: t.SkipIfUpstreamSucceeds})
	}
	for _, e := range g.edges {
		in.Edges = append(in.Edges, e.String())
	}
	sort.Slice(in.Tasks, func(i, j int) bool { return in.Tasks[i].ID < in.Tasks[j].ID })
	sort.Strings(in.Edges)
	raw, _ := json.Marshal(in)
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:])
}
