// File: internal/taskgraph/errors.go
// Brief: Graph build errors.

package taskgraph

import (
	"errors"
	"strings"
)

var ErrCycle = errors.New("cyclic dependency")

// CyclicDependencyError names the components on a dependency cycle. Path is
// the task-level cycle in edge order.
type CyclicDependencyError struct {
	Components []string
	Path       []Key
}

func (e *CyclicDependencyError) Error() string {
	if len(e.Path) > 0 {
		parts := make([]string, 0, len(e.Path)+1)
		for _, k := range e.Path {
			parts = append(parts, k.String())
		}
		parts = append(parts, e.Path[0].String())
		return "cyclic dependency detected: " + strings.Join(parts, " -> ") + " (components: " + strings.Join(e.Components, ", ") + ")"
	}
	return "cyclic dependency detected (components: " + strings.Join(e.Components, ", ") + ")"
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCycle }
