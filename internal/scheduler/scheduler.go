// File: internal/scheduler/scheduler.go
// Brief: Dispatcher, worker pool and state propagation.

package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/example/monopipe/internal/component"
	"github.com/example/monopipe/internal/taskgraph"
)

// DefaultOutputLimit is the number of trailing output bytes kept per task.
const DefaultOutputLimit = 64 * 1024

type Options struct {
	RunID       string
	MaxParallel int
	FailFast    bool
	// Retries bounds automatic retries of infrastructure failures.
	Retries int
	// DefaultTimeout applies to tasks without their own timeout. Zero means
	// no timeout.
	DefaultTimeout time.Duration
	// StageLimits caps concurrently running tasks per stage, on top of
	// MaxParallel.
	StageLimits map[component.Stage]int
	OutputLimit int
	Backoff     func(attempt int) time.Duration
	Observers   []Observer
	Tracer      trace.Tracer
}

type taskRun struct {
	task *taskgraph.Task

	mu       sync.Mutex
	state    taskgraph.State
	reason   Reason
	attempts int
	exitCode int
	errClass string
	errMsg   string
	output   []byte
	started  time.Time
	finished time.Time
}

func (tr *taskRun) load() taskgraph.State {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.state
}

// transition moves the task to `to` if the state machine allows it.
func (tr *taskRun) transition(to taskgraph.State, reason Reason) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if !taskgraph.CanTransition(tr.state, to) {
		return false
	}
	tr.state = to
	tr.reason = reason
	now := time.Now()
	switch {
	case to == taskgraph.StateRunning:
		tr.started = now
	case to.Terminal():
		tr.finished = now
	}
	return true
}

type completion struct {
	task *taskRun
}

type run struct {
	g      *taskgraph.Graph
	exec   TaskExecutor
	opts   Options
	log    logr.Logger
	tracer trace.Tracer
	events *emitter

	tasks map[taskgraph.Key]*taskRun
	order []*taskRun

	stageSem map[component.Stage]*semaphore.Weighted
	running  atomic.Int64

	// dispatcher-owned
	ready   readyQueue
	stopped bool
}

// Execute runs g to completion and returns a sealed report. Task failures
// are reported in the report, not as an error; the error is non-nil only
// for invalid arguments.
func Execute(ctx context.Context, g *taskgraph.Graph, exec TaskExecutor, opts Options) (*Report, error) {
	if g == nil {
		return nil, errors.New("task graph is nil")
	}
	if exec == nil {
		return nil, errors.New("task executor is nil")
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.OutputLimit == 0 {
		opts.OutputLimit = DefaultOutputLimit
	}
	if opts.Backoff == nil {
		opts.Backoff = retryBackoff
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("monopipe")
	}

	r := &run{
		g:        g,
		exec:     exec,
		opts:     opts,
		log:      logr.FromContextOrDiscard(ctx).WithValues("run", opts.RunID),
		tracer:   tracer,
		events:   &emitter{runID: opts.RunID, observers: opts.Observers},
		tasks:    map[taskgraph.Key]*taskRun{},
		stageSem: map[component.Stage]*semaphore.Weighted{},
	}
	for st, n := range opts.StageLimits {
		if n > 0 {
			r.stageSem[st] = semaphore.NewWeighted(int64(n))
		}
	}
	for _, t := range g.Tasks() {
		tr := &taskRun{task: t, state: t.InitialState}
		if t.InitialState == taskgraph.StateSkipped {
			tr.reason = ReasonUnchanged
		}
		r.tasks[t.Key] = tr
		r.order = append(r.order, tr)
	}

	ctx, span := tracer.Start(ctx, "monopipe.run", trace.WithAttributes(
		attribute.String("monopipe.run_id", opts.RunID),
		attribute.Int("monopipe.tasks", g.Len()),
		attribute.Int("monopipe.max_parallel", opts.MaxParallel),
		attribute.Bool("monopipe.fail_fast", opts.FailFast),
	))
	defer span.End()

	started := time.Now()
	r.events.emit(Event{Type: RunStarted, Message: fmt.Sprintf("tasks=%d maxParallel=%d failFast=%t", g.Len(), opts.MaxParallel, opts.FailFast)})
	r.log.Info("run started", "tasks", g.Len(), "maxParallel", opts.MaxParallel, "failFast", opts.FailFast)

	r.loop(ctx)

	finished := time.Now()
	rep := r.report(started, finished)
	if rep.Status != StatusSucceeded {
		span.SetStatus(codes.Error, "run failed")
	}
	span.SetAttributes(attribute.String("monopipe.status", string(rep.Status)))
	r.events.emit(Event{Type: RunCompleted, Status: rep.Status, Duration: rep.Duration, Message: fmt.Sprintf("succeeded=%d failed=%d cancelled=%d skipped=%d", rep.Totals.Succeeded, rep.Totals.Failed, rep.Totals.Cancelled, rep.Totals.Skipped)})
	r.log.Info("run completed", "status", rep.Status, "duration", rep.Duration.String(), "failed", rep.Totals.Failed, "cancelled", rep.Totals.Cancelled)
	return rep, nil
}

func (r *run) loop(ctx context.Context) {
	workers := r.opts.MaxParallel
	if workers > len(r.order) {
		workers = len(r.order)
	}
	work := make(chan *taskRun)
	done := make(chan completion, len(r.order)+1)

	var eg errgroup.Group
	for i := 0; i < workers; i++ {
		eg.Go(func() error {
			r.worker(ctx, work, done)
			return nil
		})
	}

	for _, tr := range r.order {
		if tr.load() == taskgraph.StateSkipped {
			r.emitTerminal(tr)
		}
	}
	for _, tr := range r.order {
		r.evaluate(tr)
	}

	inflight := 0
	ctxDone := ctx.Done()
	for {
		if ctx.Err() != nil && !r.stopped {
			r.stop(ReasonCancelled)
			ctxDone = nil
		}
		for inflight < workers {
			tr := r.nextDispatchable()
			if tr == nil {
				break
			}
			work <- tr
			inflight++
		}
		if inflight == 0 {
			break
		}
		select {
		case c := <-done:
			inflight--
			r.complete(c.task)
		case <-ctxDone:
			ctxDone = nil
			r.log.Info("run cancelled, draining running tasks")
			r.stop(ReasonCancelled)
		}
	}
	close(work)
	_ = eg.Wait()
	r.finalize()
}

func (r *run) worker(ctx context.Context, work <-chan *taskRun, done chan<- completion) {
	for tr := range work {
		if !tr.transition(taskgraph.StateRunning, ReasonNone) {
			done <- completion{task: tr}
			continue
		}
		n := r.running.Add(1)
		r.log.V(1).Info("task started", "task", tr.task.ID(), "running", n)
		ev := taskEvent(TaskRunning, tr.task)
		ev.State = taskgraph.StateRunning
		r.events.emit(ev)
		r.runTask(ctx, tr)
		r.running.Add(-1)
		r.emitTerminal(tr)
		done <- completion{task: tr}
	}
}

// evaluate rescans the inbound edges of a pending task and moves it to
// Ready, Skipped or Cancelled. Called only from the dispatcher goroutine.
func (r *run) evaluate(tr *taskRun) {
	if r.stopped || tr.load() != taskgraph.StatePending {
		return
	}
	waiting, blocked, gateOpen := false, false, false
	for _, e := range r.g.Inbound(tr.task.Key) {
		st := r.tasks[e.From].load()
		switch {
		case !st.Terminal():
			waiting = true
		case !st.Satisfies(e.AllowFailure):
			blocked = true
		case st == taskgraph.StateFailed || st == taskgraph.StateCancelled:
			gateOpen = true
		}
	}
	switch {
	case blocked:
		r.settle(tr, taskgraph.StateCancelled, ReasonUpstreamFailed)
	case waiting:
	case tr.task.SkipIfUpstreamSucceeds && !gateOpen:
		r.settle(tr, taskgraph.StateSkipped, ReasonUpstreamSucceeded)
	default:
		if tr.transition(taskgraph.StateReady, ReasonNone) {
			heap.Push(&r.ready, tr)
			ev := taskEvent(TaskReady, tr.task)
			ev.State = taskgraph.StateReady
			r.events.emit(ev)
		}
	}
}

// settle resolves a task without running it and propagates to successors.
func (r *run) settle(tr *taskRun, to taskgraph.State, reason Reason) {
	if !tr.transition(to, reason) {
		return
	}
	r.emitTerminal(tr)
	r.propagate(tr)
}

func (r *run) propagate(tr *taskRun) {
	for _, e := range r.g.Outbound(tr.task.Key) {
		r.evaluate(r.tasks[e.To])
	}
}

func (r *run) complete(tr *taskRun) {
	if sem := r.stageSem[tr.task.Key.Stage]; sem != nil {
		sem.Release(1)
	}
	st := tr.load()
	if !st.Terminal() {
		return
	}
	if st == taskgraph.StateFailed && r.opts.FailFast && !r.stopped {
		r.log.Info("fail-fast: cancelling pending tasks", "task", tr.task.ID())
		r.stop(ReasonFailFast)
	}
	if r.stopped {
		return
	}
	r.propagate(tr)
}

// stop cancels every Pending or Ready task. Running tasks finish but no
// longer release their successors.
func (r *run) stop(reason Reason) {
	r.stopped = true
	r.ready = r.ready[:0]
	for _, tr := range r.order {
		st := tr.load()
		if st != taskgraph.StatePending && st != taskgraph.StateReady {
			continue
		}
		if tr.transition(taskgraph.StateCancelled, reason) {
			r.emitTerminal(tr)
		}
	}
}

// nextDispatchable pops the lowest declaration index whose stage has
// capacity. Tasks held back by a stage limit stay queued.
func (r *run) nextDispatchable() *taskRun {
	var held []*taskRun
	defer func() {
		for _, tr := range held {
			heap.Push(&r.ready, tr)
		}
	}()
	for r.ready.Len() > 0 {
		tr := heap.Pop(&r.ready).(*taskRun)
		if tr.load() != taskgraph.StateReady {
			continue
		}
		if sem := r.stageSem[tr.task.Key.Stage]; sem != nil && !sem.TryAcquire(1) {
			held = append(held, tr)
			continue
		}
		return tr
	}
	return nil
}

func (r *run) finalize() {
	for _, tr := range r.order {
		st := tr.load()
		if st.Terminal() {
			continue
		}
		reason := ReasonUpstreamFailed
		if r.stopped {
			reason = ReasonCancelled
		}
		tr.mu.Lock()
		tr.state = taskgraph.StateCancelled
		tr.reason = reason
		tr.finished = time.Now()
		tr.mu.Unlock()
		r.emitTerminal(tr)
	}
}

func (r *run) emitTerminal(tr *taskRun) {
	tr.mu.Lock()
	st, reason, attempts, msg := tr.state, tr.reason, tr.attempts, tr.errMsg
	var d time.Duration
	if !tr.started.IsZero() && !tr.finished.IsZero() {
		d = tr.finished.Sub(tr.started)
	}
	tr.mu.Unlock()

	var typ EventType
	switch st {
	case taskgraph.StateSucceeded:
		typ = TaskSucceeded
	case taskgraph.StateFailed:
		typ = TaskFailed
		r.log.Error(errors.New(msg), "task failed", "task", tr.task.ID(), "reason", reason, "attempts", attempts)
	case taskgraph.StateCancelled:
		typ = TaskCancelled
	case taskgraph.StateSkipped:
		typ = TaskSkipped
	default:
		return
	}
	ev := taskEvent(typ, tr.task)
	ev.State = st
	ev.Reason = reason
	ev.Attempt = attempts
	ev.Message = msg
	ev.Duration = d
	r.events.emit(ev)
}

func (r *run) report(started, finished time.Time) *Report {
	rep := &Report{
		RunID:       r.opts.RunID,
		StartedAt:   started.UTC(),
		FinishedAt:  finished.UTC(),
		Duration:    finished.Sub(started),
		Fingerprint: r.g.Fingerprint(),
		Edges:       r.g.Edges(),
		Tasks:       make([]TaskResult, 0, len(r.order)),
	}
	for _, tr := range r.order {
		tr.mu.Lock()
		res := TaskResult{
			ID:         tr.task.ID(),
			Component:  tr.task.Key.Component,
			Stage:      tr.task.Key.Stage,
			State:      tr.state,
			Reason:     tr.reason,
			Attempts:   tr.attempts,
			ExitCode:   tr.exitCode,
			ErrorClass: tr.errClass,
			Error:      tr.errMsg,
			Output:     string(tr.output),
		}
		if !tr.started.IsZero() {
			s := tr.started.UTC()
			res.StartedAt = &s
		}
		if !tr.finished.IsZero() && !tr.started.IsZero() {
			f := tr.finished.UTC()
			res.FinishedAt = &f
			res.Duration = tr.finished.Sub(tr.started)
		}
		tr.mu.Unlock()
		rep.Tasks = append(rep.Tasks, res)
	}
	rep.Totals = computeTotals(rep.Tasks)
	rep.Status = overallStatus(rep.Tasks)
	return rep
}

type readyQueue []*taskRun

func (q readyQueue) Len() int           { return len(q) }
func (q readyQueue) Less(i, j int) bool { return q[i].task.Index < q[j].task.Index }
func (q readyQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *readyQueue) Push(x any)        { *q = append(*q, x.(*taskRun)) }
func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
