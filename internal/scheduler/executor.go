// File: internal/scheduler/executor.go
// Brief: External task executor contract.

package scheduler

import (
	"context"
	"errors"

	"github.com/example/monopipe/internal/taskgraph"
)

// Outcome is what an external executor reports for one attempt.
type Outcome struct {
	Success  bool
	ExitCode int
	Output   []byte
}

// TaskExecutor runs one task. A non-nil error means the executor itself
// could not run the task (infrastructure failure) and is eligible for
// retry; a script failure is reported as Outcome{Success: false} with a nil
// error. Implementations must be safe for concurrent use.
type TaskExecutor interface {
	Run(ctx context.Context, t *taskgraph.Task) (Outcome, error)
}

type ExecutorFunc func(ctx context.Context, t *taskgraph.Task) (Outcome, error)

func (f ExecutorFunc) Run(ctx context.Context, t *taskgraph.Task) (Outcome, error) {
	return f(ctx, t)
}

// ErrPermanent marks an infrastructure error that retrying cannot fix.
var ErrPermanent = errors.New("permanent infrastructure failure")
