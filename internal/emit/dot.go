// File: internal/emit/dot.go
// Brief: Graphviz rendering of a task graph.

package emit

import (
	"fmt"
	"strings"

	"github.com/example/monopipe/internal/taskgraph"
)

var stateColors = map[taskgraph.State]string{
	taskgraph.StatePending:   "white",
	taskgraph.StateReady:     "lightyellow",
	taskgraph.StateRunning:   "lightblue",
	taskgraph.StateSucceeded: "palegreen",
	taskgraph.StateFailed:    "salmon",
	taskgraph.StateCancelled: "orange",
	taskgraph.StateSkipped:   "lightgrey",
}

// DOT renders one cluster per component. States maps task ids to the state
// used for node color; tasks without an entry use their initial state.
func DOT(g *taskgraph.Graph, states map[string]taskgraph.State) string {
	var b strings.Builder
	b.WriteString("digraph monopipe {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=\"rounded,filled\", fontname=\"Helvetica\"];\n")

	byComponent := map[string][]*taskgraph.Task{}
	for _, t := range g.Tasks() {
		byComponent[t.Key.Component] = append(byComponent[t.Key.Component], t)
	}
	for i, id := range g.Components() {
		fmt.Fprintf(&b, "  subgraph cluster_%d {\n", i)
		fmt.Fprintf(&b, "    label=%q;\n", id)
		for _, t := range byComponent[id] {
			st, ok := states[t.ID()]
			if !ok {
				st = t.InitialState
			}
			label := t.Key.Stage.String()
			if t.SkipIfUpstreamSucceeds {
				label += " (gated)"
			}
			fmt.Fprintf(&b, "    %q [label=%q, fillcolor=%q];\n", t.ID(), label, stateColors[st])
		}
		b.WriteString("  }\n")
	}
	for _, e := range g.Edges() {
		if e.AllowFailure {
			fmt.Fprintf(&b, "  %q -> %q [style=dashed];\n", e.From.String(), e.To.String())
			continue
		}
		fmt.Fprintf(&b, "  %q -> %q;\n", e.From.String(), e.To.String())
	}
	b.WriteString("}\n")
	return b.String()
}
