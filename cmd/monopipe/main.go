// main.go bootstraps monopipe: it builds the root Cobra command, layers env and config file values under flags, and maps errors to exit codes.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/monopipe/internal/component"
	"github.com/example/monopipe/internal/envcatalog"
	"github.com/example/monopipe/internal/runner"
	"github.com/example/monopipe/internal/taskgraph"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	handleError(os.Stderr, err)
	os.Exit(exitCode(err))
}

func newRootCommand() *cobra.Command {
	g := &globalOptions{root: ".", logLevel: "info", logFormat: "console"}
	cmd := &cobra.Command{
		Use:           "monopipe",
		Short:         "Change-driven build/test/deploy orchestration for monorepos",
		Long:          "monopipe maps changed paths onto declared components, builds the stage DAG for the affected set and runs it with bounded parallelism.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return bindViper(cmd)
		},
	}
	cmd.PersistentFlags().StringVarP(&g.file, "file", "f", "", "Component declarations file (default <root>/monopipe.yaml)")
	cmd.PersistentFlags().StringVar(&g.root, "root", g.root, "Repository root that changed paths are relative to")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", g.logLevel, "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&g.logFormat, "log-format", g.logFormat, "Log encoding (console, json)")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})
	cmd.AddCommand(
		newAffectedCommand(g),
		newPlanCommand(g),
		newRunCommand(g),
		newEmitCommand(g),
		newValidateCommand(g),
		newEnvCommand(),
		newVersionCommand(),
	)
	cmd.Example = `  # Show which components a branch touches
  monopipe affected --git-range origin/main...HEAD

  # Run the affected stages, four at a time, deploys one at a time
  monopipe run --git-range origin/main...HEAD --max-parallel 4 --stage-limit deploy=1

  # Write the GitLab child pipeline for the same change set
  monopipe emit --git-range origin/main...HEAD --out child-pipeline.yml`
	return cmd
}

// bindViper fills every flag the user did not set from MONOPIPE_* env vars
// or the config file.
func bindViper(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("MONOPIPE")
	v.AutomaticEnv()
	configFile := os.Getenv(envcatalog.ConfigFile)
	configureConfigFile(v, configFile)

	fs := cmd.Flags()
	if err := v.BindPFlags(fs); err != nil {
		return err
	}
	if err := readConfigFile(v, configFile != ""); err != nil {
		return &runner.ConfigError{Err: fmt.Errorf("read config: %w", err)}
	}
	var setErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		val := fmt.Sprintf("%v", v.Get(f.Name))
		if val == "" {
			return
		}
		if err := f.Value.Set(val); err != nil && setErr == nil {
			setErr = usageError{err: fmt.Errorf("invalid value %q for %s from environment or config: %w", val, f.Name, err)}
		}
	})
	return setErr
}

func configureConfigFile(v *viper.Viper, explicitPath string) {
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		return
	}
	v.SetConfigName("config")
	for _, dir := range configSearchDirs() {
		v.AddConfigPath(dir)
	}
}

func readConfigFile(v *viper.Viper, strict bool) error {
	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if errors.As(err, &cfgErr) && !strict {
			return nil
		}
		return err
	}
	return nil
}

func configSearchDirs() []string {
	added := make(map[string]struct{})
	var dirs []string
	add := func(path string) {
		if path == "" {
			return
		}
		if _, ok := added[path]; ok {
			return
		}
		added[path] = struct{}{}
		dirs = append(dirs, path)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		add(filepath.Join(xdg, "monopipe"))
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		add(filepath.Join(home, ".config", "monopipe"))
		add(filepath.Join(home, ".monopipe"))
	}
	return dirs
}

// usageError marks bad flags and arguments; they share exit code 2 with
// configuration errors.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }

func (e usageError) Unwrap() error { return e.err }

func exitCode(err error) int {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return runner.ExitSuccess
	}
	var ue usageError
	if errors.As(err, &ue) {
		return runner.ExitConfigError
	}
	return runner.ExitCode(nil, err)
}

func handleError(w io.Writer, err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	message := err.Error()
	var declErr *component.DeclarationError
	switch {
	case errors.Is(err, taskgraph.ErrCycle):
		message = fmt.Sprintf("%s\nHint: remove one dependsOn entry on the cycle; 'monopipe validate' checks the whole declaration set.", err)
	case errors.As(err, &declErr):
		message = fmt.Sprintf("%s\nHint: run 'monopipe validate' to check the declarations before running.", err)
	case errors.Is(err, context.DeadlineExceeded):
		message = fmt.Sprintf("%s\nHint: raise --timeout or the per-stage timeouts in the declarations.", err)
	case errors.Is(err, errPipelineDrift):
		message = fmt.Sprintf("%s\nHint: rerun 'monopipe emit --out <file>' and commit the result.", err)
	}
	fmt.Fprintf(w, "Error: %s\n", message)
}
