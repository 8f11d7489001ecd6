// File: internal/executor/dryrun.go
// Brief: Executor that only reports what would run.

package executor

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/example/monopipe/internal/scheduler"
	"github.com/example/monopipe/internal/taskgraph"
)

type DryRun struct {
	Out io.Writer

	mu sync.Mutex
}

func (d *DryRun) Run(_ context.Context, t *taskgraph.Task) (scheduler.Outcome, error) {
	cmd := t.Command
	if cmd == "" {
		cmd = "(no command)"
	}
	line := fmt.Sprintf("would run %s: %s\n", t.ID(), cmd)
	if d.Out != nil {
		d.mu.Lock()
		_, _ = io.WriteString(d.Out, line)
		d.mu.Unlock()
	}
	return scheduler.Outcome{Success: true, Output: []byte(line)}, nil
}
