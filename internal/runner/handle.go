// File: internal/runner/handle.go
// Brief: Handles for in-flight and finished runs.

package runner

import (
	"context"
	"sync"

	"github.com/example/monopipe/internal/scheduler"
)

// Handle tracks one triggered run.
type Handle struct {
	id       string
	strategy Strategy
	plan     *Plan
	cancel   context.CancelFunc
	done     chan struct{}

	mu     sync.Mutex
	status scheduler.RunStatus
	report *RunReport
}

func newHandle(id string, strategy Strategy, plan *Plan) *Handle {
	return &Handle{
		id:       id,
		strategy: strategy,
		plan:     plan,
		cancel:   func() {},
		done:     make(chan struct{}),
		status:   scheduler.StatusPending,
	}
}

func (h *Handle) ID() string { return h.id }

func (h *Handle) Strategy() Strategy { return h.strategy }

// Plan is the detection result and graph the run executes.
func (h *Handle) Plan() *Plan { return h.plan }

// Done is closed once the report is sealed.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel stops dispatching. Pending and Ready tasks end Cancelled; running
// tasks finish on their own.
func (h *Handle) Cancel() { h.cancel() }

func (h *Handle) Status() scheduler.RunStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Report returns the sealed report, or nil while the run is in flight.
func (h *Handle) Report() *RunReport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.report
}

// Wait blocks until the run is sealed or ctx ends. A failed run yields a
// ChildFailedError alongside the report.
func (h *Handle) Wait(ctx context.Context) (*RunReport, error) {
	select {
	case <-h.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	rep := h.Report()
	if !rep.Succeeded() {
		return rep, &ChildFailedError{RunID: h.id, Report: rep}
	}
	return rep, nil
}

func (h *Handle) setStatus(s scheduler.RunStatus) {
	h.mu.Lock()
	h.status = s
	h.mu.Unlock()
}

func (h *Handle) seal(rep *RunReport) {
	h.mu.Lock()
	h.report = rep
	h.status = rep.Status
	h.mu.Unlock()
	close(h.done)
}
