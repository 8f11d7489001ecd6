package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/example/monopipe/internal/changes"
	"github.com/example/monopipe/internal/component"
	"github.com/example/monopipe/internal/metrics"
	"github.com/example/monopipe/internal/runstore"
	"github.com/example/monopipe/internal/scheduler"
	"github.com/example/monopipe/internal/taskgraph"
)

func comp(id string, deps ...string) component.Spec {
	s := component.Spec{ID: id, Paths: []string{id + "/"}}
	for _, d := range deps {
		s.DependsOn = append(s.DependsOn, component.DependencySpec{ID: d})
	}
	return s
}

func newController(t *testing.T, exec scheduler.TaskExecutor, specs ...component.Spec) *Controller {
	t.Helper()
	store, err := component.NewStore(component.File{Components: specs}, "")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	c, err := New(Config{
		Store:    store,
		Executor: exec,
		Schedule: scheduler.Options{MaxParallel: 2, FailFast: true},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

type fakeExec struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeExec) Run(_ context.Context, t *taskgraph.Task) (scheduler.Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, t.ID())
	f.mu.Unlock()
	return scheduler.Outcome{Success: !f.fail[t.ID()]}, nil
}

func (f *fakeExec) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// gated blocks every task until release is closed.
type gated struct {
	started chan string
	release chan struct{}
}

func newGated() *gated {
	return &gated{started: make(chan string, 16), release: make(chan struct{})}
}

func (g *gated) Run(_ context.Context, t *taskgraph.Task) (scheduler.Outcome, error) {
	g.started <- t.ID()
	<-g.release
	return scheduler.Outcome{Success: true}, nil
}

func taskStates(rep *RunReport) map[string]taskgraph.State {
	out := map[string]taskgraph.State{}
	for _, tr := range rep.Tasks {
		out[tr.ID] = tr.State
	}
	return out
}

func TestRunEmptyChangeSetSucceeds(t *testing.T) {
	exec := &fakeExec{}
	c := newController(t, exec, comp("api"), comp("web"))
	rep, err := c.Run(context.Background(), changes.NewChangeSet())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Status != scheduler.StatusSucceeded || rep.Totals.Tasks != 0 || len(rep.Tasks) != 0 {
		t.Fatalf("expected empty successful report, got %+v", rep.Report)
	}
	if exec.count() != 0 {
		t.Fatalf("executor should not be called")
	}
	if code := ExitCode(rep, err); code != ExitSuccess {
		t.Fatalf("exit code=%d", code)
	}
}

func TestRunUnmatchedPathsAreCounted(t *testing.T) {
	c := newController(t, &fakeExec{}, comp("api"))
	rep, err := c.Run(context.Background(), changes.NewChangeSet("README.md", "api/main.go"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Unmatched != 1 || len(rep.Changed) != 1 || rep.Totals.Succeeded != 3 {
		t.Fatalf("unexpected report: unmatched=%d changed=%v totals=%+v", rep.Unmatched, rep.Changed, rep.Totals)
	}
	for _, phase := range []string{"detect", "build", "execute"} {
		if _, ok := rep.Phases[phase]; !ok {
			t.Fatalf("missing phase %q in %v", phase, rep.Phases)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	c := newController(t, &fakeExec{}, comp("payment"), comp("order", "payment"), comp("web"))
	cs := changes.NewChangeSet("order/handler.go")
	first, err := c.Run(context.Background(), cs)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := c.Run(context.Background(), cs)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.RunID == second.RunID {
		t.Fatalf("run ids must differ")
	}
	if first.Fingerprint != second.Fingerprint {
		t.Fatalf("fingerprints differ: %s vs %s", first.Fingerprint, second.Fingerprint)
	}
	if fmt.Sprint(taskStates(first)) != fmt.Sprint(taskStates(second)) {
		t.Fatalf("task sets differ:\n%v\n%v", taskStates(first), taskStates(second))
	}
	if fmt.Sprint(first.Edges) != fmt.Sprint(second.Edges) {
		t.Fatalf("edges differ")
	}
}

func TestDependFailureIsFailureOfTheCall(t *testing.T) {
	exec := &fakeExec{fail: map[string]bool{"api:test": true}}
	c := newController(t, exec, comp("api"), comp("web"))
	h, err := c.Trigger(context.Background(), changes.NewChangeSet("api/main.go"), StrategyDepend)
	var childErr *ChildFailedError
	if !errors.As(err, &childErr) {
		t.Fatalf("expected ChildFailedError, got %v", err)
	}
	if childErr.RunID != h.ID() || childErr.Report != h.Report() {
		t.Fatalf("error does not carry the run report")
	}
	states := taskStates(h.Report())
	if states["api:test"] != taskgraph.StateFailed || states["api:deploy"] != taskgraph.StateCancelled {
		t.Fatalf("unexpected states: %v", states)
	}
	if h.Status() != scheduler.StatusFailed {
		t.Fatalf("status=%s", h.Status())
	}
	if code := ExitCode(h.Report(), err); code != ExitTaskFailure {
		t.Fatalf("exit code=%d", code)
	}
}

func TestConfigErrorRaisedBeforeAnyTask(t *testing.T) {
	exec := &fakeExec{}
	c := newController(t, exec, comp("a", "b"), comp("b", "a"))
	h, err := c.Trigger(context.Background(), changes.NewChangeSet("a/x.go"), StrategyDepend)
	if h != nil {
		t.Fatalf("expected no handle")
	}
	if !IsConfigError(err) || !errors.Is(err, taskgraph.ErrCycle) {
		t.Fatalf("expected cycle config error, got %v", err)
	}
	if code := ExitCode(nil, err); code != ExitConfigError {
		t.Fatalf("exit code=%d", code)
	}
	if exec.count() != 0 || len(c.List()) != 0 {
		t.Fatalf("nothing should run or be registered")
	}
}

func TestDetachedSurvivesCallerCancellation(t *testing.T) {
	exec := newGated()
	c := newController(t, exec, comp("api"))
	ctx, cancel := context.WithCancel(context.Background())
	h, err := c.Trigger(ctx, changes.NewChangeSet("api/main.go"), StrategyDetached)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	<-exec.started
	cancel()
	if h.Report() != nil {
		t.Fatalf("detached trigger must return before the run is sealed")
	}
	if got, ok := c.Get(h.ID()); !ok || got != h {
		t.Fatalf("handle not tracked")
	}
	close(exec.release)
	rep, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if rep.Totals.Succeeded != 3 || rep.Strategy != StrategyDetached {
		t.Fatalf("unexpected report: %+v", rep.Totals)
	}
}

func TestDetachedCancelCascades(t *testing.T) {
	exec := newGated()
	c := newController(t, exec, comp("api"))
	h, err := c.Trigger(context.Background(), changes.NewChangeSet("api/main.go"), StrategyDetached)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if first := <-exec.started; first != "api:build" {
		t.Fatalf("first task=%s", first)
	}
	h.Cancel()
	close(exec.release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rep, err := h.Wait(ctx)
	var childErr *ChildFailedError
	if !errors.As(err, &childErr) {
		t.Fatalf("expected ChildFailedError, got %v", err)
	}
	states := taskStates(rep)
	if states["api:build"] != taskgraph.StateSucceeded {
		t.Fatalf("running task should finish, got %s", states["api:build"])
	}
	if states["api:test"] != taskgraph.StateCancelled || states["api:deploy"] != taskgraph.StateCancelled {
		t.Fatalf("expected cancelled descendants, got %v", states)
	}
	if rep.Totals.Cancelled != 2 {
		t.Fatalf("cancelled=%d", rep.Totals.Cancelled)
	}
}

func TestCloseStopsDetachedRuns(t *testing.T) {
	exec := newGated()
	store, err := component.NewStore(component.File{Components: []component.Spec{comp("api")}}, "")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	c, err := New(Config{Store: store, Executor: exec})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	h, err := c.Trigger(context.Background(), changes.NewChangeSet("api/a.go"), StrategyDetached)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	<-exec.started
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(exec.release)
	}()
	c.Close()
	select {
	case <-h.Done():
	default:
		t.Fatalf("close must wait for the run to seal")
	}
	if h.Status() != scheduler.StatusFailed {
		t.Fatalf("status=%s", h.Status())
	}
	if _, err := c.Trigger(context.Background(), changes.NewChangeSet("api/a.go"), StrategyDepend); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestJournalAndMetricsRecordRuns(t *testing.T) {
	ctx := context.Background()
	journal, err := runstore.Open(ctx, logr.Discard())
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	defer journal.Close()
	store, err := component.NewStore(component.File{Components: []component.Spec{comp("payment"), comp("order", "payment")}}, "")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	c, err := New(Config{Store: store, Executor: &fakeExec{}, Journal: journal, Metrics: metrics.New()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()

	rep, err := c.Run(ctx, changes.NewChangeSet("order/main.go"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	rec, err := journal.GetRun(ctx, rep.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if rec.Status != string(scheduler.StatusSucceeded) || rec.Fingerprint != rep.Fingerprint || len(rec.Report) == 0 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	events, err := journal.Events(ctx, rep.RunID, 0)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) == 0 || events[len(events)-1].Type != scheduler.RunCompleted {
		t.Fatalf("expected run events ending in completion, got %d", len(events))
	}
	if journal.Err() != nil {
		t.Fatalf("journal error: %v", journal.Err())
	}
}

func TestParseStrategy(t *testing.T) {
	cases := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{in: "", want: StrategyDepend},
		{in: "Depend", want: StrategyDepend},
		{in: "detached", want: StrategyDetached},
		{in: "async", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseStrategy(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Fatalf("ParseStrategy(%q)=%q,%v", tc.in, got, err)
		}
	}
}

func TestExitCode(t *testing.T) {
	failed := &RunReport{Report: scheduler.Report{Status: scheduler.StatusFailed}}
	ok := &RunReport{Report: scheduler.Report{Status: scheduler.StatusSucceeded}}
	cases := []struct {
		name string
		rep  *RunReport
		err  error
		want int
	}{
		{name: "success", rep: ok, want: ExitSuccess},
		{name: "failed report", rep: failed, want: ExitTaskFailure},
		{name: "child failed", err: &ChildFailedError{RunID: "x"}, want: ExitTaskFailure},
		{name: "config", err: &ConfigError{Err: errors.New("bad")}, want: ExitConfigError},
		{name: "declaration", err: fmt.Errorf("load: %w", &component.DeclarationError{Kind: component.ErrDuplicateComponent}), want: ExitConfigError},
		{name: "cycle", err: &taskgraph.CyclicDependencyError{Components: []string{"a"}}, want: ExitConfigError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExitCode(tc.rep, tc.err); got != tc.want {
				t.Fatalf("got %d want %d", got, tc.want)
			}
		})
	}
}
