// File: internal/scheduler/report.go
// Brief: Terminal run report.

package scheduler

import (
	"time"

	"github.com/example/monopipe/internal/component"
	"github.com/example/monopipe/internal/taskgraph"
)

type RunStatus string

const (
	StatusPending   RunStatus = "Pending"
	StatusRunning   RunStatus = "Running"
	StatusSucceeded RunStatus = "Succeeded"
	StatusFailed    RunStatus = "Failed"
)

type Totals struct {
	Tasks     int `json:"tasks"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Skipped   int `json:"skipped"`
}

type TaskResult struct {
	ID         string          `json:"id"`
	Component  string          `json:"component"`
	Stage      component.Stage `json:"stage"`
	State      taskgraph.State `json:"state"`
	Reason     Reason          `json:"reason,omitempty"`
	Attempts   int             `json:"attempts,omitempty"`
	ExitCode   int             `json:"exitCode,omitempty"`
	ErrorClass string          `json:"errorClass,omitempty"`
	Error      string          `json:"error,omitempty"`
	Output     string          `json:"output,omitempty"`
	StartedAt  *time.Time      `json:"startedAt,omitempty"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty"`
	Duration   time.Duration   `json:"duration,omitempty"`
}

// Report is the sealed outcome of one graph execution. Tasks are listed in
// declaration order.
type Report struct {
	RunID       string           `json:"runId"`
	Status      RunStatus        `json:"status"`
	StartedAt   time.Time        `json:"startedAt"`
	FinishedAt  time.Time        `json:"finishedAt"`
	Duration    time.Duration    `json:"duration"`
	Fingerprint string           `json:"fingerprint"`
	Totals      Totals           `json:"totals"`
	Tasks       []TaskResult     `json:"tasks"`
	Edges       []taskgraph.Edge `json:"edges"`
}

func (r *Report) Task(id string) (TaskResult, bool) {
	if r == nil {
		return TaskResult{}, false
	}
	for _, t := range r.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return TaskResult{}, false
}

func (r *Report) Succeeded() bool { return r != nil && r.Status == StatusSucceeded }

// Failed lists tasks that genuinely failed (not cancelled).
func (r *Report) Failed() []TaskResult {
	var out []TaskResult
	for _, t := range r.Tasks {
		if t.State == taskgraph.StateFailed {
			out = append(out, t)
		}
	}
	return out
}

func computeTotals(tasks []TaskResult) Totals {
	tot := Totals{Tasks: len(tasks)}
	for _, t := range tasks {
		switch t.State {
		case taskgraph.StateSucceeded:
			tot.Succeeded++
		case taskgraph.StateFailed:
			tot.Failed++
		case taskgraph.StateCancelled:
			tot.Cancelled++
		case taskgraph.StateSkipped:
			tot.Skipped++
		}
	}
	return tot
}

// overallStatus is Succeeded when every non-skipped task succeeded. An
// empty run succeeds.
func overallStatus(tasks []TaskResult) RunStatus {
	for _, t := range tasks {
		if t.State != taskgraph.StateSucceeded && t.State != taskgraph.StateSkipped {
			return StatusFailed
		}
	}
	return StatusSucceeded
}
