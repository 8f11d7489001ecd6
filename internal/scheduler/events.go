// File: internal/scheduler/events.go
// Brief: Structured run events and observers.

package scheduler

import (
	"sync"
	"time"

	"github.com/example/monopipe/internal/taskgraph"
)

// EventType enumerates structured run events. Observers receive them in
// sequence order.
type EventType string

const (
	RunStarted   EventType = "RUN_STARTED"
	RunCompleted EventType = "RUN_COMPLETED"

	TaskReady     EventType = "TASK_READY"
	TaskRunning   EventType = "TASK_RUNNING"
	TaskSucceeded EventType = "TASK_SUCCEEDED"
	TaskFailed    EventType = "TASK_FAILED"
	TaskCancelled EventType = "TASK_CANCELLED"
	TaskSkipped   EventType = "TASK_SKIPPED"

	RetryScheduled EventType = "RETRY_SCHEDULED"
)

type Event struct {
	Seq       int64           `json:"seq"`
	Time      time.Time       `json:"ts"`
	RunID     string          `json:"runId"`
	Type      EventType       `json:"type"`
	Task      string          `json:"task,omitempty"`
	Component string          `json:"component,omitempty"`
	Stage     string          `json:"stage,omitempty"`
	State     taskgraph.State `json:"state,omitempty"`
	Reason    Reason          `json:"reason,omitempty"`
	Attempt   int             `json:"attempt,omitempty"`
	Message   string          `json:"message,omitempty"`
	Duration  time.Duration   `json:"duration,omitempty"`
	Status    RunStatus       `json:"status,omitempty"`
}

type Observer interface {
	ObserveEvent(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) ObserveEvent(ev Event) {
	if f == nil {
		return
	}
	f(ev)
}

// emitter serializes events so observers never run concurrently.
type emitter struct {
	mu        sync.Mutex
	runID     string
	seq       int64
	observers []Observer
}

func (e *emitter) emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	ev.Seq = e.seq
	ev.RunID = e.runID
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	for _, o := range e.observers {
		if o != nil {
			o.ObserveEvent(ev)
		}
	}
}

func taskEvent(typ EventType, t *taskgraph.Task) Event {
	return Event{
		Type:      typ,
		Task:      t.ID(),
		Component: t.Key.Component,
		Stage:     t.Key.Stage.String(),
	}
}
