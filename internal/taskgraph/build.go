// File: internal/taskgraph/build.go
// Brief: Build the task DAG for a set of changed components.

package taskgraph

import (
	"fmt"
	"strings"

	"github.com/example/monopipe/internal/component"
)

// SkipPolicy decides what happens to components that are in the graph only
// because something changed depends on them.
type SkipPolicy string

const (
	// SkipGate starts Build/Test as Skipped and keeps the remaining stages
	// as gates that resolve to Skipped once their upstream is green.
	SkipGate SkipPolicy = "gate"
	// SkipRerun executes closure-only components like changed ones.
	SkipRerun SkipPolicy = "rerun"
	// SkipAssumeGreen starts every closure-only task as Skipped.
	SkipAssumeGreen SkipPolicy = "assume-green"
)

func ParseSkipPolicy(raw string) (SkipPolicy, error) {
	switch SkipPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SkipGate:
		return SkipGate, nil
	case SkipRerun:
		return SkipRerun, nil
	case SkipAssumeGreen:
		return SkipAssumeGreen, nil
	default:
		return "", fmt.Errorf("unknown skip policy %q (expected gate, rerun, or assume-green)", raw)
	}
}

type Options struct {
	SkipPolicy SkipPolicy
}

// Build materializes one stage chain per component in the dependency
// closure of changed, links chains along declared dependencies and
// validates acyclicity. An empty changed set yields an empty graph.
func Build(changed []string, store *component.Store, opts Options) (*Graph, error) {
	policy := opts.SkipPolicy
	if policy == "" {
		policy = SkipGate
	}
	g := newGraph()
	if len(changed) == 0 {
		return g, nil
	}
	included, err := store.Closure(changed)
	if err != nil {
		return nil, err
	}
	isChanged := map[string]bool{}
	for _, id := range changed {
		isChanged[id] = true
	}
	g.included = included
	for _, id := range included {
		if isChanged[id] {
			g.changed = append(g.changed, id)
		}
	}

	entry := map[string]component.Stage{}
	skippedAll := map[string]bool{}
	for _, id := range included {
		c, _ := store.Component(id)
		tasks := make([]*Task, 0, len(c.Stages))
		for _, st := range c.Stages {
			t := &Task{
				Key:          Key{Component: id, Stage: st},
				Command:      c.Commands[st],
				Dir:          c.Dir,
				Env:          c.Env,
				Timeout:      c.Timeouts[st],
				Changed:      isChanged[id],
				InitialState: StatePending,
			}
			if !t.Changed {
				switch policy {
				case SkipAssumeGreen:
					t.InitialState = StateSkipped
				case SkipGate:
					if st == component.StageBuild || st == component.StageTest {
						t.InitialState = StateSkipped
					} else {
						t.SkipIfUpstreamSucceeds = true
					}
				}
			}
			tasks = append(tasks, t)
		}
		// Without a later stage to hold the gate, the last build/test stage
		// becomes the gate so the component still passes failures on.
		if last := tasks[len(tasks)-1]; policy == SkipGate && last.InitialState == StateSkipped {
			last.InitialState = StatePending
			last.SkipIfUpstreamSucceeds = true
		}
		entry[id] = c.FirstStage()
		skippedAll[id] = true
		for _, t := range tasks {
			if t.InitialState != StateSkipped {
				entry[id] = t.Key.Stage
				skippedAll[id] = false
				break
			}
		}
		for _, t := range tasks {
			g.addTask(t)
		}
		for i := 1; i < len(c.Stages); i++ {
			g.addEdge(Edge{
				From: Key{Component: id, Stage: c.Stages[i-1]},
				To:   Key{Component: id, Stage: c.Stages[i]},
			})
		}
	}

	// A depends on B: B's terminal stage gates A's first runnable stage and,
	// when present, A's deploy stage. A B whose every task starts Skipped
	// cannot hold a failure back, so B's own sources are linked to A too.
	sources := upstreamSources(store, skippedAll)
	for _, id := range included {
		c, _ := store.Component(id)
		for _, dep := range c.DependsOn {
			d, _ := store.Component(dep.ID)
			froms := []source{{key: Key{Component: d.ID, Stage: d.LastStage()}}}
			if skippedAll[d.ID] {
				froms = append(froms, sources(d.ID)...)
			}
			for _, src := range froms {
				allow := dep.AllowFailure || src.allowFailure
				g.addEdge(Edge{From: src.key, To: Key{Component: id, Stage: entry[id]}, AllowFailure: allow})
				if c.HasStage(component.StageDeploy) && entry[id] != component.StageDeploy {
					g.addEdge(Edge{From: src.key, To: Key{Component: id, Stage: component.StageDeploy}, AllowFailure: allow})
				}
			}
		}
	}

	if err := validateAcyclic(g); err != nil {
		return nil, err
	}
	return g, nil
}

type source struct {
	key          Key
	allowFailure bool
}

// upstreamSources returns, for a fully skipped component, the terminal
// stages of the nearest dependencies that can still fail. allowFailure is
// set when any dependency on the way allows failure. Components on a
// dependency cycle are left to validateAcyclic.
func upstreamSources(store *component.Store, skippedAll map[string]bool) func(string) []source {
	memo := map[string][]source{}
	visiting := map[string]bool{}
	var walk func(string) []source
	walk = func(id string) []source {
		if out, ok := memo[id]; ok {
			return out
		}
		if visiting[id] {
			return nil
		}
		visiting[id] = true
		defer delete(visiting, id)
		c, _ := store.Component(id)
		var out []source
		for _, dep := range c.DependsOn {
			d, _ := store.Component(dep.ID)
			if !skippedAll[d.ID] {
				out = append(out, source{key: Key{Component: d.ID, Stage: d.LastStage()}, allowFailure: dep.AllowFailure})
				continue
			}
			for _, src := range walk(d.ID) {
				out = append(out, source{key: src.key, allowFailure: src.allowFailure || dep.AllowFailure})
			}
		}
		memo[id] = out
		return out
	}
	return walk
}
