// File: cmd/monopipe/plan.go
// Brief: CLI command wiring and implementation for 'plan'.

package main

import (
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/example/monopipe/internal/executor"
	"github.com/example/monopipe/internal/report"
	"github.com/example/monopipe/internal/runner"
)

func newPlanCommand(g *globalOptions) *cobra.Command {
	var co changeOptions
	output := string(report.FormatTable)
	cmd := &cobra.Command{
		Use:   "plan [PATH...]",
		Short: "Build and print the task graph without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(output)
			if err != nil {
				return err
			}
			p, err := buildPlan(cmd, g, &co, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return report.Plan(out, format, report.StyleFor(out), p)
		},
	}
	addChangeFlags(cmd.Flags(), &co)
	cmd.Flags().StringVarP(&output, "output", "o", output, "Output format: table, json, or yaml")
	return cmd
}

// buildPlan runs detection and graph construction for the read-only
// commands. A dry-run executor satisfies the controller; nothing executes.
func buildPlan(cmd *cobra.Command, g *globalOptions, co *changeOptions, args []string) (*runner.Plan, error) {
	log, err := g.logger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	store, root, err := g.loadStore()
	if err != nil {
		return nil, err
	}
	buildOpts, err := co.buildOptions()
	if err != nil {
		return nil, err
	}
	cs, err := co.changeSet(logr.NewContext(cmd.Context(), log), cmd, root, args)
	if err != nil {
		return nil, err
	}
	ctl, err := runner.New(runner.Config{
		Store:    store,
		Executor: &executor.DryRun{},
		Detect:   co.detectOptions(),
		Build:    buildOpts,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	defer ctl.Close()
	p, err := ctl.Plan(cs)
	if err != nil {
		return nil, err
	}
	log.V(1).Info("plan built", "tasks", p.Graph.Len(), "fingerprint", p.Graph.Fingerprint())
	return p, nil
}
