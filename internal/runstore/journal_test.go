package runstore

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"

	"github.com/example/monopipe/internal/component"
	"github.com/example/monopipe/internal/scheduler"
	"github.com/example/monopipe/internal/taskgraph"
)

func TestJournalRecordsRun(t *testing.T) {
	ctx := context.Background()
	j, err := Open(ctx, logr.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer j.Close()

	s, err := component.NewStore(component.File{Components: []component.Spec{
		{ID: "api", Paths: []string{"api/"}, Stages: []string{"build", "test"}},
	}}, "")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	g, err := taskgraph.Build([]string{"api"}, s, taskgraph.Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var ids []string
	for _, tk := range g.Tasks() {
		ids = append(ids, tk.ID())
	}
	if err := j.CreateRun(ctx, RunMeta{RunID: "run-1", Strategy: "depend", Fingerprint: g.Fingerprint(), Tasks: ids}); err != nil {
		t.Fatalf("create run: %v", err)
	}

	ex := scheduler.ExecutorFunc(func(ctx context.Context, tk *taskgraph.Task) (scheduler.Outcome, error) {
		return scheduler.Outcome{Success: tk.Key.Stage == component.StageBuild, ExitCode: 1}, nil
	})
	rep, err := scheduler.Execute(ctx, g, ex, scheduler.Options{RunID: "run-1", Observers: []scheduler.Observer{j.Observer()}})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := j.WriteReport(ctx, "run-1", rep.Status, rep); err != nil {
		t.Fatalf("write report: %v", err)
	}
	if err := j.Err(); err != nil {
		t.Fatalf("journal error: %v", err)
	}

	rec, err := j.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if rec.Status != string(scheduler.StatusFailed) || rec.Strategy != "depend" || len(rec.Report) == 0 {
		t.Fatalf("unexpected run record %+v", rec)
	}

	tasks, err := j.Tasks(ctx, "run-1")
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].State != "Succeeded" || tasks[1].State != "Failed" || tasks[1].Reason != "script_failure" {
		t.Fatalf("unexpected tasks %+v", tasks)
	}
	if tasks[1].Error != "exit code 1" {
		t.Fatalf("unexpected task error %q", tasks[1].Error)
	}

	events, err := j.Events(ctx, "run-1", 0)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) == 0 || events[0].Type != scheduler.RunStarted || events[len(events)-1].Type != scheduler.RunCompleted {
		t.Fatalf("unexpected events %+v", events)
	}
	tail, err := j.Events(ctx, "run-1", events[len(events)-2].Seq)
	if err != nil || len(tail) != 1 {
		t.Fatalf("expected one event after seq, got %d (%v)", len(tail), err)
	}

	runs, err := j.ListRuns(ctx)
	if err != nil || len(runs) != 1 {
		t.Fatalf("list runs: %v %v", runs, err)
	}
}

func TestJournalUnknownRun(t *testing.T) {
	j, err := Open(context.Background(), logr.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer j.Close()
	if _, err := j.GetRun(context.Background(), "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestJournalsAreIsolated(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, logr.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()
	b, err := Open(ctx, logr.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer b.Close()
	if err := a.CreateRun(ctx, RunMeta{RunID: "x"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	runs, err := b.ListRuns(ctx)
	if err != nil || len(runs) != 0 {
		t.Fatalf("journals share state: %v %v", runs, err)
	}
}
