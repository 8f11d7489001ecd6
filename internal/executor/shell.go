// File: internal/executor/shell.go
// Brief: Run stage commands as local processes.

package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/mattn/go-shellwords"

	"github.com/example/monopipe/internal/envcatalog"
	"github.com/example/monopipe/internal/scheduler"
	"github.com/example/monopipe/internal/taskgraph"
)

// Shell runs a task's command with the repository root as base directory.
// Command strings are split with shell quoting rules and executed directly,
// without a shell, unless they start with "sh -c".
type Shell struct {
	Root string
	// Stream, when set, receives task output prefixed with the task id.
	Stream io.Writer
	Env    []string
	Logger logr.Logger

	streamMu sync.Mutex
}

func (s *Shell) Run(ctx context.Context, t *taskgraph.Task) (scheduler.Outcome, error) {
	command := strings.TrimSpace(t.Command)
	if command == "" {
		s.Logger.V(1).Info("no command for task, treating as success", "task", t.ID())
		return scheduler.Outcome{Success: true}, nil
	}
	parser := shellwords.NewParser()
	parser.ParseEnv = true
	parser.Getenv = envLookup(t.Env)
	args, err := parser.Parse(command)
	if err != nil {
		return scheduler.Outcome{}, fmt.Errorf("%s: parse command: %v: %w", t.ID(), err, scheduler.ErrPermanent)
	}
	if len(args) == 0 {
		return scheduler.Outcome{Success: true}, nil
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = s.workDir(t)
	cmd.Env = s.environ(t)
	var buf bytes.Buffer
	var out io.Writer = &buf
	var stream *prefixWriter
	if s.Stream != nil {
		stream = &prefixWriter{mu: &s.streamMu, w: s.Stream, prefix: "[" + t.ID() + "] "}
		out = io.MultiWriter(&buf, stream)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	s.Logger.V(1).Info("exec", "task", t.ID(), "argv", args, "dir", cmd.Dir)
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return scheduler.Outcome{}, fmt.Errorf("%s: start %s: %v: %w", t.ID(), args[0], err, scheduler.ErrPermanent)
		}
		return scheduler.Outcome{}, fmt.Errorf("%s: start %s: %w", t.ID(), args[0], err)
	}
	err = cmd.Wait()
	stream.Flush()
	outcome := scheduler.Outcome{Success: err == nil, Output: buf.Bytes()}
	if err == nil {
		return outcome, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		outcome.ExitCode = exitErr.ExitCode()
		return outcome, nil
	}
	return outcome, fmt.Errorf("%s: wait %s: %w", t.ID(), args[0], err)
}

func (s *Shell) workDir(t *taskgraph.Task) string {
	root := s.Root
	if root == "" {
		root = "."
	}
	if t.Dir == "" {
		return root
	}
	return filepath.Join(root, filepath.FromSlash(t.Dir))
}

func (s *Shell) environ(t *taskgraph.Task) []string {
	env := os.Environ()
	env = append(env, s.Env...)
	keys := make([]string, 0, len(t.Env))
	for k := range t.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+t.Env[k])
	}
	return append(env,
		envcatalog.TaskComponent+"="+t.Key.Component,
		envcatalog.TaskStage+"="+t.Key.Stage.String(),
		envcatalog.TaskID+"="+t.ID(),
	)
}

func envLookup(extra map[string]string) func(string) string {
	return func(key string) string {
		if v, ok := extra[key]; ok {
			return v
		}
		return os.Getenv(key)
	}
}

type prefixWriter struct {
	mu      *sync.Mutex
	w       io.Writer
	prefix  string
	pending []byte
}

// Write emits complete lines only; partial lines wait for the next write.
func (p *prefixWriter) Write(b []byte) (int, error) {
	p.pending = append(p.pending, b...)
	for {
		idx := bytes.IndexByte(p.pending, '\n')
		if idx < 0 {
			break
		}
		line := p.pending[:idx+1]
		p.mu.Lock()
		_, err := io.WriteString(p.w, p.prefix+string(line))
		p.mu.Unlock()
		if err != nil {
			return len(b), nil
		}
		p.pending = p.pending[idx+1:]
	}
	return len(b), nil
}

// Flush writes a trailing partial line, terminated with a newline.
func (p *prefixWriter) Flush() {
	if p == nil || len(p.pending) == 0 {
		return
	}
	p.mu.Lock()
	_, _ = io.WriteString(p.w, p.prefix+string(p.pending)+"\n")
	p.mu.Unlock()
	p.pending = nil
}
