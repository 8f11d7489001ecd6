// File: cmd/monopipe/options.go
// Brief: Shared flag groups: declarations, logging and change inputs.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/example/monopipe/internal/changes"
	"github.com/example/monopipe/internal/component"
	"github.com/example/monopipe/internal/logging"
	"github.com/example/monopipe/internal/report"
	"github.com/example/monopipe/internal/runner"
	"github.com/example/monopipe/internal/taskgraph"
)

type globalOptions struct {
	file      string
	root      string
	logLevel  string
	logFormat string
}

func (g *globalOptions) logger(w io.Writer) (logr.Logger, error) {
	log, err := logging.New(logging.Options{Level: g.logLevel, Format: g.logFormat, Out: w})
	if err != nil {
		return logr.Logger{}, usageError{err: err}
	}
	return log, nil
}

func (g *globalOptions) repoRoot() (string, error) {
	root, err := homedir.Expand(strings.TrimSpace(g.root))
	if err != nil {
		return "", usageError{err: fmt.Errorf("expand --root: %w", err)}
	}
	if root == "" {
		root = "."
	}
	return filepath.Abs(root)
}

// loadStore returns the validated declarations and the absolute repo root.
// Every failure here is a configuration error.
func (g *globalOptions) loadStore() (*component.Store, string, error) {
	root, err := g.repoRoot()
	if err != nil {
		return nil, "", err
	}
	file, err := homedir.Expand(strings.TrimSpace(g.file))
	if err != nil {
		return nil, "", usageError{err: fmt.Errorf("expand --file: %w", err)}
	}
	store, err := component.Load(root, file)
	if err != nil {
		return nil, "", &runner.ConfigError{Err: err}
	}
	return store, root, nil
}

// changeOptions selects where changed paths come from. Sources add up.
type changeOptions struct {
	changedFile       string
	diffFile          string
	gitRange          string
	includeDependents bool
	skipPolicy        string
}

func addChangeFlags(fs *pflag.FlagSet, o *changeOptions) {
	fs.StringVar(&o.changedFile, "changed-file", "", "File with one changed path per line ('-' reads stdin)")
	fs.StringVar(&o.diffFile, "diff", "", "Unified diff to take changed paths from ('-' reads stdin)")
	fs.StringVar(&o.gitRange, "git-range", "", "Git revision range passed to 'git diff --name-only' (e.g. origin/main...HEAD)")
	fs.BoolVar(&o.includeDependents, "include-dependents", false, "Also treat components depending on a changed component as changed")
	fs.StringVar(&o.skipPolicy, "skip-policy", string(taskgraph.SkipGate), "Unchanged dependencies: gate, rerun, or assume-green")
}

func (o *changeOptions) changeSet(ctx context.Context, cmd *cobra.Command, root string, args []string) (changes.ChangeSet, error) {
	if o.changedFile == "-" && o.diffFile == "-" {
		return changes.ChangeSet{}, usageError{err: errors.New("--changed-file and --diff cannot both read stdin")}
	}
	paths := append([]string(nil), args...)
	if o.changedFile != "" {
		list, err := readSource(cmd, o.changedFile, changes.ReadPathList)
		if err != nil {
			return changes.ChangeSet{}, fmt.Errorf("read --changed-file: %w", err)
		}
		paths = append(paths, list...)
	}
	if o.diffFile != "" {
		list, err := readSource(cmd, o.diffFile, changes.FromUnifiedDiff)
		if err != nil {
			return changes.ChangeSet{}, fmt.Errorf("read --diff: %w", err)
		}
		paths = append(paths, list...)
	}
	if strings.TrimSpace(o.gitRange) != "" {
		list, err := changes.GitChangedFiles(ctx, root, o.gitRange)
		if err != nil {
			return changes.ChangeSet{}, err
		}
		paths = append(paths, list...)
	}
	return changes.NewChangeSet(paths...), nil
}

func (o *changeOptions) detectOptions() changes.Options {
	return changes.Options{IncludeDependents: o.includeDependents}
}

func (o *changeOptions) buildOptions() (taskgraph.Options, error) {
	policy, err := taskgraph.ParseSkipPolicy(o.skipPolicy)
	if err != nil {
		return taskgraph.Options{}, usageError{err: err}
	}
	return taskgraph.Options{SkipPolicy: policy}, nil
}

func readSource(cmd *cobra.Command, name string, parse func(io.Reader) ([]string, error)) ([]string, error) {
	if name == "-" {
		return parse(cmd.InOrStdin())
	}
	path, err := homedir.Expand(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

func outputFormat(raw string) (report.Format, error) {
	f, err := report.ParseFormat(raw)
	if err != nil {
		return "", usageError{err: err}
	}
	return f, nil
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
