// File: internal/metrics/metrics.go
// Brief: Prometheus collectors fed by scheduler events.

// Package metrics exposes run and task counters as Prometheus collectors on a
// private registry. The CLI writes them to a node_exporter textfile.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/example/monopipe/internal/scheduler"
)

const namespace = "monopipe"

type Recorder struct {
	reg *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	tasksTotal    *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	retriesTotal  *prometheus.CounterVec
	tasksRunning  prometheus.Gauge
	lastRunStatus *prometheus.GaugeVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed runs by terminal status.",
		}, []string{"status"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of completed runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		tasksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Tasks reaching a terminal state.",
		}, []string{"stage", "state", "reason"}),
		taskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of executed tasks.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"stage", "state"}),
		retriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_retries_total",
			Help:      "Retries scheduled after infrastructure failures.",
		}, []string{"stage"}),
		tasksRunning: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_running",
			Help:      "Tasks currently running.",
		}),
		lastRunStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the most recent run succeeded, 0 otherwise.",
		}, []string{"strategy"}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Observer returns a scheduler observer updating the collectors.
func (r *Recorder) Observer() scheduler.Observer {
	return scheduler.ObserverFunc(r.observe)
}

func (r *Recorder) observe(ev scheduler.Event) {
	switch ev.Type {
	case scheduler.TaskRunning:
		r.tasksRunning.Inc()
	case scheduler.TaskSucceeded, scheduler.TaskFailed, scheduler.TaskCancelled, scheduler.TaskSkipped:
		// Attempt is zero for tasks resolved without running.
		if ev.Attempt > 0 {
			r.tasksRunning.Dec()
			r.taskDuration.WithLabelValues(ev.Stage, ev.State.String()).Observe(ev.Duration.Seconds())
		}
		r.tasksTotal.WithLabelValues(ev.Stage, ev.State.String(), string(ev.Reason)).Inc()
	case scheduler.RetryScheduled:
		r.retriesTotal.WithLabelValues(ev.Stage).Inc()
	case scheduler.RunCompleted:
		r.runsTotal.WithLabelValues(string(ev.Status)).Inc()
		r.runDuration.Observe(ev.Duration.Seconds())
	}
}

// RecordRun sets the last-run gauge for a strategy.
func (r *Recorder) RecordRun(strategy string, succeeded bool) {
	v := 0.0
	if succeeded {
		v = 1
	}
	r.lastRunStatus.WithLabelValues(strategy).Set(v)
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
