// File: cmd/monopipe/validate.go
// Brief: CLI command wiring and implementation for 'validate'.

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/monopipe/internal/runner"
	"github.com/example/monopipe/internal/taskgraph"
)

func newValidateCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the component declarations and check them for errors and cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := g.loadStore()
			if err != nil {
				return err
			}
			// Builds only run over the affected closure, so a cycle between
			// untouched components would otherwise surface much later.
			var all []string
			for _, c := range store.Components() {
				all = append(all, c.ID)
			}
			graph, err := taskgraph.Build(all, store, taskgraph.Options{SkipPolicy: taskgraph.SkipRerun})
			if err != nil {
				return &runner.ConfigError{Err: err}
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "COMPONENT\tSTAGES\tDEPENDS ON\tPATHS")
			for _, c := range store.Components() {
				stages := make([]string, 0, len(c.Stages))
				for _, st := range c.Stages {
					stages = append(stages, st.String())
				}
				deps := make([]string, 0, len(c.DependsOn))
				for _, d := range c.DependsOn {
					if d.AllowFailure {
						deps = append(deps, d.ID+"(allow-failure)")
						continue
					}
					deps = append(deps, d.ID)
				}
				owned := append(append([]string(nil), c.Paths...), c.Patterns...)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, strings.Join(stages, ","), dashIfEmpty(strings.Join(deps, ",")), strings.Join(owned, ","))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "OK: %d component(s), %d task(s), %d edge(s) in %s\n", store.Len(), graph.Len(), len(graph.Edges()), store.Source())
			return nil
		},
	}
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
