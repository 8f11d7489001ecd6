// File: internal/scheduler/task_run.go
// Brief: Single task invocation with timeout, retry and output capture.

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/monopipe/internal/taskgraph"
)

type panicError struct {
	value any
}

func (e *panicError) Error() string { return fmt.Sprintf("executor panic: %v", e.value) }

type callResult struct {
	out      Outcome
	err      error
	timedOut bool
}

// runTask drives one Running task to a terminal state.
func (r *run) runTask(ctx context.Context, tr *taskRun) {
	t := tr.task
	ctx, span := r.tracer.Start(ctx, "monopipe.task", trace.WithAttributes(
		attribute.String("monopipe.task", t.ID()),
		attribute.String("monopipe.component", t.Key.Component),
		attribute.String("monopipe.stage", t.Key.Stage.String()),
	))
	defer span.End()

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = r.opts.DefaultTimeout
	}

	for attempt := 1; ; attempt++ {
		tr.mu.Lock()
		tr.attempts = attempt
		tr.mu.Unlock()

		res := r.invoke(ctx, t, timeout)
		r.recordOutput(tr, res.out)

		var pe *panicError
		switch {
		case res.timedOut:
			r.finish(tr, taskgraph.StateFailed, ReasonTimeout, "TIMEOUT", fmt.Sprintf("timed out after %s", timeout))
		case errors.As(res.err, &pe):
			r.finish(tr, taskgraph.StateFailed, ReasonExecutorPanic, "PANIC", pe.Error())
		case res.err != nil:
			class := classifyError(res.err)
			if attempt <= r.opts.Retries && isRetryable(res.err) {
				backoff := r.opts.Backoff(attempt)
				ev := taskEvent(RetryScheduled, t)
				ev.State = taskgraph.StateRunning
				ev.Reason = ReasonInfrastructure
				ev.Attempt = attempt
				ev.Message = fmt.Sprintf("class=%s backoff=%s: %v", class, backoff.Round(time.Millisecond), res.err)
				r.events.emit(ev)
				r.log.Info("retrying task after infrastructure failure", "task", t.ID(), "attempt", attempt, "class", class, "backoff", backoff.String())
				select {
				case <-ctx.Done():
					r.finish(tr, taskgraph.StateCancelled, ReasonCancelled, class, "retry abandoned: "+res.err.Error())
					span.SetStatus(codes.Error, "cancelled")
					return
				case <-time.After(backoff):
				}
				continue
			}
			r.finish(tr, taskgraph.StateFailed, ReasonInfrastructure, class, res.err.Error())
		case !res.out.Success:
			tr.mu.Lock()
			tr.exitCode = res.out.ExitCode
			tr.mu.Unlock()
			r.finish(tr, taskgraph.StateFailed, ReasonScriptFailure, "", fmt.Sprintf("exit code %d", res.out.ExitCode))
		default:
			r.finish(tr, taskgraph.StateSucceeded, ReasonNone, "", "")
		}
		break
	}

	span.SetAttributes(attribute.Int("monopipe.attempts", tr.attemptsSnapshot()))
	if st := tr.load(); st != taskgraph.StateSucceeded {
		span.SetStatus(codes.Error, st.String())
	}
}

// invoke calls the executor once. Running tasks are never killed by run
// cancellation; only the per-task timeout interrupts them. The call runs on
// its own goroutine so an executor that ignores its context still times out.
func (r *run) invoke(ctx context.Context, t *taskgraph.Task, timeout time.Duration) callResult {
	callCtx := context.WithoutCancel(ctx)
	cancel := func() {}
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(callCtx, timeout)
	}
	defer cancel()

	resCh := make(chan callResult, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				resCh <- callResult{err: &panicError{value: v}}
			}
		}()
		out, err := r.exec.Run(callCtx, t)
		resCh <- callResult{out: out, err: err}
	}()

	select {
	case res := <-resCh:
		if timeout > 0 && errors.Is(callCtx.Err(), context.DeadlineExceeded) && (res.err != nil || !res.out.Success) {
			res.timedOut = true
		}
		return res
	case <-callCtx.Done():
		return callResult{err: callCtx.Err(), timedOut: true}
	}
}

func (r *run) recordOutput(tr *taskRun, out Outcome) {
	if len(out.Output) == 0 {
		return
	}
	buf := out.Output
	if r.opts.OutputLimit > 0 && len(buf) > r.opts.OutputLimit {
		buf = buf[len(buf)-r.opts.OutputLimit:]
	}
	tr.mu.Lock()
	tr.output = append([]byte(nil), buf...)
	tr.mu.Unlock()
}

func (r *run) finish(tr *taskRun, to taskgraph.State, reason Reason, class, msg string) {
	tr.mu.Lock()
	tr.errClass = class
	tr.errMsg = msg
	tr.mu.Unlock()
	tr.transition(to, reason)
}

func (tr *taskRun) attemptsSnapshot() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.attempts
}
