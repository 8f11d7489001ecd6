// File: internal/runner/controller.go
// Brief: Run controller: detect, build, execute and track runs.

package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/example/monopipe/internal/changes"
	"github.com/example/monopipe/internal/component"
	"github.com/example/monopipe/internal/metrics"
	"github.com/example/monopipe/internal/runstore"
	"github.com/example/monopipe/internal/scheduler"
	"github.com/example/monopipe/internal/taskgraph"
	"github.com/example/monopipe/internal/telemetry"
)

// ErrClosed is returned by Trigger after Close.
var ErrClosed = errors.New("run controller is closed")

type Config struct {
	Store    *component.Store
	Executor scheduler.TaskExecutor
	Detect   changes.Options
	Build    taskgraph.Options
	// Schedule is copied per run; RunID is always overwritten.
	Schedule scheduler.Options
	Journal  *runstore.Journal
	Metrics  *metrics.Recorder
	Logger   logr.Logger
}

// Plan is everything known about a run before it executes.
type Plan struct {
	Detection changes.Result
	Graph     *taskgraph.Graph
}

// RunReport is the scheduler report enriched with how the graph came to be.
type RunReport struct {
	scheduler.Report
	Strategy  Strategy                 `json:"strategy"`
	Changed   []string                 `json:"changed"`
	Affected  []string                 `json:"affected"`
	Reasons   map[string][]string      `json:"reasons,omitempty"`
	Unmatched int                      `json:"unmatched"`
	Phases    map[string]time.Duration `json:"phases,omitempty"`
}

type Controller struct {
	cfg Config
	log logr.Logger

	mu      sync.Mutex
	closed  bool
	handles map[string]*Handle
	order   []*Handle
	wg      sync.WaitGroup
}

func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, errors.New("component store is required")
	}
	if cfg.Executor == nil {
		return nil, errors.New("task executor is required")
	}
	return &Controller{
		cfg:     cfg,
		log:     cfg.Logger.WithName("runner"),
		handles: map[string]*Handle{},
	}, nil
}

// Plan runs detection and graph construction without executing anything.
func (c *Controller) Plan(cs changes.ChangeSet) (*Plan, error) {
	return c.plan(cs, nil)
}

func (c *Controller) plan(cs changes.ChangeSet, timer *telemetry.PhaseTimer) (*Plan, error) {
	p := &Plan{}
	_ = timer.Track("detect", func() error {
		p.Detection = changes.Detect(cs, c.cfg.Store, c.cfg.Detect)
		return nil
	})
	err := timer.Track("build", func() error {
		g, err := taskgraph.Build(p.Detection.Changed, c.cfg.Store, c.cfg.Build)
		p.Graph = g
		return err
	})
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	return p, nil
}

// Trigger starts a run for cs. With StrategyDepend it blocks until the run
// is sealed and returns a ChildFailedError when the run failed. With
// StrategyDetached it returns as soon as the run is registered; the run
// survives cancellation of ctx and is stopped through Handle.Cancel or
// Close. Configuration errors are returned before any task runs.
func (c *Controller) Trigger(ctx context.Context, cs changes.ChangeSet, strategy Strategy) (*Handle, error) {
	if strategy == "" {
		strategy = StrategyDepend
	}
	if strategy != StrategyDepend && strategy != StrategyDetached {
		return nil, &ConfigError{Err: fmt.Errorf("unknown strategy %q", strategy)}
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	timer := telemetry.NewPhaseTimer()
	p, err := c.plan(cs, timer)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	h := newHandle(runID, strategy, p)
	if c.cfg.Journal != nil {
		meta := runstore.RunMeta{
			RunID:       runID,
			Strategy:    string(strategy),
			Fingerprint: p.Graph.Fingerprint(),
			CreatedAt:   time.Now(),
		}
		for _, t := range p.Graph.Tasks() {
			meta.Tasks = append(meta.Tasks, t.ID())
		}
		if err := c.cfg.Journal.CreateRun(ctx, meta); err != nil {
			return nil, fmt.Errorf("record run %s: %w", runID, err)
		}
	}

	var runCtx context.Context
	switch strategy {
	case StrategyDetached:
		runCtx, h.cancel = context.WithCancel(context.WithoutCancel(ctx))
	default:
		runCtx, h.cancel = context.WithCancel(ctx)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		h.cancel()
		return nil, ErrClosed
	}
	c.handles[runID] = h
	c.order = append(c.order, h)
	c.wg.Add(1)
	c.mu.Unlock()

	log := c.log.WithValues("run", runID, "strategy", string(strategy))
	log.Info("run triggered", "changed", len(p.Detection.Changed), "affected", len(p.Detection.Affected), "tasks", p.Graph.Len(), "unmatched", p.Detection.UnmatchedCount())

	if strategy == StrategyDetached {
		go c.execute(logr.NewContext(runCtx, log), h, timer)
		return h, nil
	}
	c.execute(logr.NewContext(runCtx, log), h, timer)
	rep := h.Report()
	if !rep.Succeeded() {
		return h, &ChildFailedError{RunID: runID, Report: rep}
	}
	return h, nil
}

// Run is Trigger with StrategyDepend, returning the report directly.
func (c *Controller) Run(ctx context.Context, cs changes.ChangeSet) (*RunReport, error) {
	h, err := c.Trigger(ctx, cs, StrategyDepend)
	if h == nil {
		return nil, err
	}
	return h.Report(), err
}

func (c *Controller) execute(ctx context.Context, h *Handle, timer *telemetry.PhaseTimer) {
	defer c.wg.Done()
	defer h.cancel()
	log := logr.FromContextOrDiscard(ctx)

	opts := c.cfg.Schedule
	opts.RunID = h.id
	opts.Observers = append([]scheduler.Observer(nil), c.cfg.Schedule.Observers...)
	if c.cfg.Journal != nil {
		opts.Observers = append(opts.Observers, c.cfg.Journal.Observer())
	}
	if c.cfg.Metrics != nil {
		opts.Observers = append(opts.Observers, c.cfg.Metrics.Observer())
	}

	h.setStatus(scheduler.StatusRunning)
	var rep *scheduler.Report
	err := timer.Track("execute", func() error {
		var err error
		rep, err = scheduler.Execute(ctx, h.plan.Graph, c.cfg.Executor, opts)
		return err
	})
	if err != nil {
		// Execute only rejects nil arguments, which New already rules out.
		log.Error(err, "scheduler rejected run")
		now := time.Now()
		rep = &scheduler.Report{RunID: h.id, Status: scheduler.StatusFailed, StartedAt: now, FinishedAt: now}
	}

	det := h.plan.Detection
	out := &RunReport{
		Report:    *rep,
		Strategy:  h.strategy,
		Changed:   det.Changed,
		Affected:  det.Affected,
		Reasons:   det.Reasons,
		Unmatched: det.UnmatchedCount(),
		Phases:    timer.Snapshot(),
	}
	if c.cfg.Journal != nil {
		if err := c.cfg.Journal.WriteReport(context.WithoutCancel(ctx), h.id, out.Status, out); err != nil {
			log.Error(err, "journal report write failed")
		}
	}
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordRun(string(h.strategy), out.Succeeded())
	}
	h.seal(out)
}

// Get returns a handle by run id.
func (c *Controller) Get(runID string) (*Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handles[runID]
	return h, ok
}

// List returns handles in trigger order.
func (c *Controller) List() []*Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Handle(nil), c.order...)
}

// Close cancels every unfinished run and waits for all of them to seal.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	pending := append([]*Handle(nil), c.order...)
	c.mu.Unlock()
	for _, h := range pending {
		select {
		case <-h.done:
		default:
			h.Cancel()
		}
	}
	c.wg.Wait()
}
