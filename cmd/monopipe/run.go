// File: cmd/monopipe/run.go
// Brief: CLI command wiring and implementation for 'run'.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/example/monopipe/internal/component"
	"github.com/example/monopipe/internal/executor"
	"github.com/example/monopipe/internal/metrics"
	"github.com/example/monopipe/internal/report"
	"github.com/example/monopipe/internal/runner"
	"github.com/example/monopipe/internal/runstore"
	"github.com/example/monopipe/internal/scheduler"
	"github.com/example/monopipe/internal/tracing"
)

type runOptions struct {
	maxParallel     int
	failFast        bool
	continueOnError bool
	retries         int
	timeout         time.Duration
	stageLimits     map[string]int
	strategy        string
	dryRun          bool
	streamOutput    bool
	metricsFile     string
	trace           bool
	output          string
}

func newRunCommand(g *globalOptions) *cobra.Command {
	var co changeOptions
	o := runOptions{
		maxParallel: 4,
		failFast:    true,
		strategy:    string(runner.StrategyDepend),
		output:      string(report.FormatTable),
	}
	cmd := &cobra.Command{
		Use:   "run [PATH...]",
		Short: "Run the stages of every affected component",
		Long: `run detects affected components, builds their build/test/deploy DAG and executes it.

Exit status is 0 when every task succeeded or was skipped, 1 when a task failed
or was cancelled, and 2 for configuration errors raised before any task ran.
With --strategy detached the child run's outcome does not affect the exit status.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, g, &co, &o, args)
		},
	}
	fs := cmd.Flags()
	addChangeFlags(fs, &co)
	fs.IntVar(&o.maxParallel, "max-parallel", o.maxParallel, "Maximum number of tasks running at once")
	fs.BoolVar(&o.failFast, "fail-fast", o.failFast, "Cancel pending tasks after the first failure")
	fs.BoolVar(&o.continueOnError, "continue-on-error", false, "Keep running independent branches after a failure (same as --fail-fast=false)")
	fs.IntVar(&o.retries, "retries", 0, "Retries for infrastructure failures (script failures are never retried)")
	fs.DurationVar(&o.timeout, "timeout", 0, "Default per-task timeout (0 disables)")
	fs.StringToIntVar(&o.stageLimits, "stage-limit", nil, "Per-stage concurrency limit, e.g. deploy=1")
	fs.StringVar(&o.strategy, "strategy", o.strategy, "depend (wait and adopt the child status) or detached")
	fs.BoolVar(&o.dryRun, "dry-run", false, "Print commands instead of executing them")
	fs.BoolVar(&o.streamOutput, "stream-output", false, "Stream task output to stderr with a task prefix")
	fs.StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after the run")
	fs.BoolVar(&o.trace, "trace", false, "Print OpenTelemetry spans for the run to stderr")
	fs.StringVarP(&o.output, "output", "o", o.output, "Output format: table, json, or yaml")
	return cmd
}

func (o *runOptions) scheduleOptions() (scheduler.Options, error) {
	if o.maxParallel < 1 {
		return scheduler.Options{}, usageError{err: fmt.Errorf("--max-parallel must be at least 1, got %d", o.maxParallel)}
	}
	if o.retries < 0 {
		return scheduler.Options{}, usageError{err: fmt.Errorf("--retries must not be negative")}
	}
	opts := scheduler.Options{
		MaxParallel:    o.maxParallel,
		FailFast:       o.failFast && !o.continueOnError,
		Retries:        o.retries,
		DefaultTimeout: o.timeout,
	}
	for name, n := range o.stageLimits {
		st, err := component.ParseStage(name)
		if err != nil {
			return scheduler.Options{}, usageError{err: fmt.Errorf("--stage-limit: %w", err)}
		}
		if n < 1 {
			return scheduler.Options{}, usageError{err: fmt.Errorf("--stage-limit %s must be at least 1", name)}
		}
		if opts.StageLimits == nil {
			opts.StageLimits = map[component.Stage]int{}
		}
		opts.StageLimits[st] = n
	}
	return opts, nil
}

func runRun(cmd *cobra.Command, g *globalOptions, co *changeOptions, o *runOptions, args []string) error {
	// Logs, progress and streamed output all share stderr across goroutines.
	stdout, stderr := cmd.OutOrStdout(), &lockedWriter{w: cmd.ErrOrStderr()}
	errStyle := report.StyleFor(cmd.ErrOrStderr())
	format, err := outputFormat(o.output)
	if err != nil {
		return err
	}
	strategy, err := runner.ParseStrategy(o.strategy)
	if err != nil {
		return usageError{err: err}
	}
	schedOpts, err := o.scheduleOptions()
	if err != nil {
		return err
	}
	buildOpts, err := co.buildOptions()
	if err != nil {
		return err
	}
	log, err := g.logger(stderr)
	if err != nil {
		return err
	}
	ctx := logr.NewContext(cmd.Context(), log)

	store, root, err := g.loadStore()
	if err != nil {
		return err
	}
	cs, err := co.changeSet(ctx, cmd, root, args)
	if err != nil {
		return err
	}

	var exec scheduler.TaskExecutor
	if o.dryRun {
		exec = &executor.DryRun{Out: stderr}
	} else {
		shell := &executor.Shell{Root: root, Logger: log}
		if o.streamOutput {
			shell.Stream = stderr
		}
		exec = shell
	}

	tp, err := tracing.New(tracing.Options{Enabled: o.trace, Out: stderr, Pretty: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Error(err, "trace shutdown failed")
		}
	}()
	journal, err := runstore.Open(ctx, log)
	if err != nil {
		return fmt.Errorf("open run journal: %w", err)
	}
	defer journal.Close()
	rec := metrics.New()

	schedOpts.Tracer = tp.Tracer()
	schedOpts.Observers = []scheduler.Observer{report.NewProgress(stderr, errStyle)}
	ctl, err := runner.New(runner.Config{
		Store:    store,
		Executor: exec,
		Detect:   co.detectOptions(),
		Build:    buildOpts,
		Schedule: schedOpts,
		Journal:  journal,
		Metrics:  rec,
		Logger:   log,
	})
	if err != nil {
		return err
	}
	defer ctl.Close()

	h, runErr := ctl.Trigger(ctx, cs, strategy)
	if h == nil {
		return runErr
	}
	if strategy == runner.StrategyDetached {
		fmt.Fprintf(stderr, "run %s started detached\n", h.ID())
		// The process owns the workers, so it still waits; an interrupt
		// cancels the child instead of abandoning it.
		select {
		case <-h.Done():
		case <-ctx.Done():
			h.Cancel()
			<-h.Done()
		}
	}

	rep := h.Report()
	if err := report.Run(stdout, format, report.StyleFor(stdout), rep); err != nil {
		return err
	}
	if o.metricsFile != "" {
		if err := rec.WriteTextfile(o.metricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	if events, err := journal.Events(context.WithoutCancel(ctx), h.ID(), 0); err == nil {
		log.V(1).Info("run journaled", "run", h.ID(), "events", len(events))
	}
	if err := journal.Err(); err != nil {
		log.Error(err, "run journal incomplete", "run", h.ID())
	}
	if strategy == runner.StrategyDetached {
		return nil
	}
	return runErr
}
