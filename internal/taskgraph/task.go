// File: internal/taskgraph/task.go
// Brief: Task keys, tasks and edges.

package taskgraph

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/monopipe/internal/component"
)

// Key identifies a task by (component, stage).
type Key struct {
	Component string          `json:"component"`
	Stage     component.Stage `json:"stage"`
}

func (k Key) String() string { return k.Component + ":" + k.Stage.String() }

func ParseKey(raw string) (Key, error) {
	id, stage, ok := strings.Cut(raw, ":")
	if !ok || id == "" {
		return Key{}, fmt.Errorf("invalid task key %q (expected component:stage)", raw)
	}
	st, err := component.ParseStage(stage)
	if err != nil {
		return Key{}, err
	}
	return Key{Component: id, Stage: st}, nil
}

// Task is immutable once the graph is built.
type Task struct {
	Key   Key `json:"key"`
	Index int `json:"index"`

	Command string            `json:"command,omitempty"`
	Dir     string            `json:"dir,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Timeout time.Duration     `json:"timeout,omitempty"`

	// Changed is true when the component's own paths changed.
	Changed bool `json:"changed"`
	// SkipIfUpstreamSucceeds resolves the task to Skipped instead of
	// running it once every inbound edge is satisfied by a green source.
	SkipIfUpstreamSucceeds bool `json:"skipIfUpstreamSucceeds,omitempty"`
	// InitialState is Pending, or Skipped for tasks assumed green.
	InitialState State `json:"initialState"`
}

func (t *Task) ID() string { return t.Key.String() }

type Edge struct {
	From         Key  `json:"from"`
	To           Key  `json:"to"`
	AllowFailure bool `json:"allowFailure,omitempty"`
}

func (e Edge) String() string {
	arrow := "->"
	if e.AllowFailure {
		arrow = "~>"
	}
	return e.From.String() + " " + arrow + " " + e.To.String()
}
