package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/example/monopipe/internal/scheduler"
	"github.com/example/monopipe/internal/taskgraph"
)

func TestRecorderCountsEvents(t *testing.T) {
	r := New()
	obs := r.Observer()
	obs.ObserveEvent(scheduler.Event{Type: scheduler.TaskRunning, Task: "api:build", Stage: "build"})
	obs.ObserveEvent(scheduler.Event{Type: scheduler.TaskSucceeded, Task: "api:build", Stage: "build", State: taskgraph.StateSucceeded, Attempt: 1, Duration: time.Second})
	obs.ObserveEvent(scheduler.Event{Type: scheduler.TaskSkipped, Task: "lib:build", Stage: "build", State: taskgraph.StateSkipped, Reason: scheduler.ReasonUnchanged})
	obs.ObserveEvent(scheduler.Event{Type: scheduler.RetryScheduled, Task: "api:test", Stage: "test", Attempt: 1})
	obs.ObserveEvent(scheduler.Event{Type: scheduler.RunCompleted, Status: scheduler.StatusSucceeded, Duration: 3 * time.Second})
	r.RecordRun("depend", true)

	if got := testutil.ToFloat64(r.tasksTotal.WithLabelValues("build", "Succeeded", "")); got != 1 {
		t.Fatalf("succeeded tasks=%v", got)
	}
	if got := testutil.ToFloat64(r.tasksTotal.WithLabelValues("build", "Skipped", "unchanged")); got != 1 {
		t.Fatalf("skipped tasks=%v", got)
	}
	if got := testutil.ToFloat64(r.tasksRunning); got != 0 {
		t.Fatalf("running gauge=%v", got)
	}
	if got := testutil.ToFloat64(r.retriesTotal.WithLabelValues("test")); got != 1 {
		t.Fatalf("retries=%v", got)
	}
	if got := testutil.ToFloat64(r.runsTotal.WithLabelValues("Succeeded")); got != 1 {
		t.Fatalf("runs=%v", got)
	}
	if got := testutil.ToFloat64(r.lastRunStatus.WithLabelValues("depend")); got != 1 {
		t.Fatalf("last run=%v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.Observer().ObserveEvent(scheduler.Event{Type: scheduler.RunCompleted, Status: scheduler.StatusFailed})
	path := filepath.Join(t.TempDir(), "monopipe.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), `monopipe_runs_total{status="Failed"} 1`) {
		t.Fatalf("unexpected textfile:\n%s", raw)
	}
}
