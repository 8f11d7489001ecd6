// File: internal/taskgraph/state.go
// Brief: Task state machine.

package taskgraph

import (
	"fmt"
	"strings"
)

type State int

const (
	StatePending State = iota
	StateReady
	StateRunning
	StateSucceeded
	StateFailed
	StateCancelled
	StateSkipped
)

var stateNames = [...]string{
	StatePending:   "Pending",
	StateReady:     "Ready",
	StateRunning:   "Running",
	StateSucceeded: "Succeeded",
	StateFailed:    "Failed",
	StateCancelled: "Cancelled",
	StateSkipped:   "Skipped",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled, StateSkipped:
		return true
	default:
		return false
	}
}

// Satisfies reports whether a source in state s releases an edge.
func (s State) Satisfies(allowFailure bool) bool {
	if allowFailure {
		return s.Terminal()
	}
	return s == StateSucceeded || s == StateSkipped
}

// CanTransition validates the Pending -> Ready -> Running -> terminal
// machine. Pending and Ready tasks may be cancelled or skipped directly.
func CanTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateReady || to == StateCancelled || to == StateSkipped
	case StateReady:
		return to == StateRunning || to == StateCancelled || to == StateSkipped
	case StateRunning:
		return to == StateSucceeded || to == StateFailed || to == StateCancelled
	default:
		return false
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if strings.EqualFold(name, string(b)) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown task state %q", string(b))
}
