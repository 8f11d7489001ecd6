// File: internal/taskgraph/dag.go
// Brief: Kahn validation, wave grouping and cycle reporting.

package taskgraph

import "sort"

func validateAcyclic(g *Graph) error {
	inDegree := make(map[Key]int, len(g.tasks))
	for _, t := range g.tasks {
		inDegree[t.Key] = len(g.inbound[t.Key])
	}
	var ready []Key
	for _, t := range g.tasks {
		if inDegree[t.Key] == 0 {
			ready = append(ready, t.Key)
		}
	}

	var waves [][]Key
	assigned := 0
	for len(ready) > 0 {
		wave := append([]Key(nil), ready...)
		ready = ready[:0]
		for _, k := range wave {
			assigned++
			for _, i := range g.outbound[k] {
				to := g.edges[i].To
				inDegree[to]--
				if inDegree[to] == 0 {
					ready = append(ready, to)
				}
			}
		}
		sort.Slice(ready, func(i, j int) bool { return g.byKey[ready[i]] < g.byKey[ready[j]] })
		waves = append(waves, wave)
	}
	if assigned == len(g.tasks) {
		g.waves = waves
		return nil
	}

	var stuck []Key
	for _, t := range g.tasks {
		if inDegree[t.Key] > 0 {
			stuck = append(stuck, t.Key)
		}
	}
	path := findCyclePath(g, stuck)
	err := &CyclicDependencyError{Path: path}
	seen := map[string]struct{}{}
	source := path
	if len(source) == 0 {
		source = stuck
	}
	for _, k := range source {
		if _, ok := seen[k.Component]; ok {
			continue
		}
		seen[k.Component] = struct{}{}
		err.Components = append(err.Components, k.Component)
	}
	return err
}

// findCyclePath walks outbound edges among stuck tasks and returns the first
// cycle found, in edge direction.
func findCyclePath(g *Graph, stuck []Key) []Key {
	stuckSet := map[Key]struct{}{}
	for _, k := range stuck {
		stuckSet[k] = struct{}{}
	}
	vis := map[Key]bool{}
	onStack := map[Key]bool{}
	var stack []Key
	var cycle []Key
	var dfs func(Key) bool
	dfs = func(k Key) bool {
		vis[k] = true
		onStack[k] = true
		stack = append(stack, k)
		for _, i := range g.outbound[k] {
			next := g.edges[i].To
			if _, ok := stuckSet[next]; !ok {
				continue
			}
			if !vis[next] {
				if dfs(next) {
					return true
				}
				continue
			}
			if onStack[next] {
				for idx := range stack {
					if stack[idx] == next {
						cycle = append([]Key(nil), stack[idx:]...)
						break
					}
				}
				return true
			}
		}
		onStack[k] = false
		stack = stack[:len(stack)-1]
		return false
	}
	for _, k := range stuck {
		if vis[k] {
			continue
		}
		if dfs(k) {
			return cycle
		}
	}
	return nil
}
