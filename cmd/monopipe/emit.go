// File: cmd/monopipe/emit.go
// Brief: CLI command wiring and implementation for 'emit'.

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/example/monopipe/internal/emit"
)

var errPipelineDrift = errors.New("generated pipeline differs from committed file")

func newEmitCommand(g *globalOptions) *cobra.Command {
	var co changeOptions
	var (
		format = "gitlab"
		out    string
		check  string
		image  string
		tags   []string
	)
	cmd := &cobra.Command{
		Use:   "emit [PATH...]",
		Short: "Serialize the task graph as a GitLab child pipeline or Graphviz DOT",
		Long: `emit renders the graph for an external runner. The graph stays the source of
truth: tasks that would be skipped are left out of the GitLab pipeline and
their dependents need the nearest emitted ancestors instead.

--check compares the output with a committed file and fails with a unified
diff when they differ.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildPlan(cmd, g, &co, args)
			if err != nil {
				return err
			}
			var data []byte
			switch strings.ToLower(strings.TrimSpace(format)) {
			case "gitlab", "gitlab-ci":
				data, err = emit.GitLab(p.Graph, emit.GitLabOptions{Image: image, Tags: tags})
				if err != nil {
					return err
				}
			case "dot":
				data = []byte(emit.DOT(p.Graph, nil))
			default:
				return usageError{err: fmt.Errorf("unknown --format %q (expected gitlab or dot)", format)}
			}

			if check != "" {
				path, err := homedir.Expand(check)
				if err != nil {
					return err
				}
				diff, err := emit.Check(data, path)
				if err != nil {
					return err
				}
				if diff != "" {
					fmt.Fprint(cmd.OutOrStdout(), diff)
					return fmt.Errorf("%s: %w", check, errPipelineDrift)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s is up to date\n", check)
				return nil
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			path, err := homedir.Expand(out)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d tasks)\n", out, p.Graph.Len())
			return nil
		},
	}
	addChangeFlags(cmd.Flags(), &co)
	cmd.Flags().StringVar(&format, "format", format, "Output format: gitlab or dot")
	cmd.Flags().StringVar(&out, "out", "", "Write to this file instead of stdout")
	cmd.Flags().StringVar(&check, "check", "", "Compare with this committed file and fail on drift")
	cmd.Flags().StringVar(&image, "image", "", "Default image for the GitLab pipeline")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Runner tags applied to every GitLab job")
	return cmd
}
