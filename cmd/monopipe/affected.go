// File: cmd/monopipe/affected.go
// Brief: CLI command wiring and implementation for 'affected'.

package main

import (
	"github.com/spf13/cobra"

	"github.com/example/monopipe/internal/changes"
	"github.com/example/monopipe/internal/report"
)

func newAffectedCommand(g *globalOptions) *cobra.Command {
	var co changeOptions
	output := string(report.FormatTable)
	cmd := &cobra.Command{
		Use:   "affected [PATH...]",
		Short: "Print the components a change set touches",
		Long:  "affected maps changed paths onto component declarations and prints the changed components, their dependency closure and why each one was selected.",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(output)
			if err != nil {
				return err
			}
			store, root, err := g.loadStore()
			if err != nil {
				return err
			}
			cs, err := co.changeSet(cmd.Context(), cmd, root, args)
			if err != nil {
				return err
			}
			res := changes.Detect(cs, store, co.detectOptions())
			return report.Affected(cmd.OutOrStdout(), format, res)
		},
	}
	addChangeFlags(cmd.Flags(), &co)
	cmd.Flags().StringVarP(&output, "output", "o", output, "Output format: table, json, or yaml")
	return cmd
}
