// File: internal/runner/errors.go
// Brief: Run controller error types and exit code mapping.

package runner

import (
	"errors"
	"fmt"

	"github.com/example/monopipe/internal/component"
	"github.com/example/monopipe/internal/taskgraph"
)

const (
	ExitSuccess     = 0
	ExitTaskFailure = 1
	ExitConfigError = 2
)

// ConfigError marks failures raised before any task ran: bad declarations,
// cycles, unknown components.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "configuration error: " + e.Err.Error() }

func (e *ConfigError) Unwrap() error { return e.Err }

// ChildFailedError is returned by the depend strategy when the child run
// did not succeed. The report is attached so callers can render it.
type ChildFailedError struct {
	RunID  string
	Report *RunReport
}

func (e *ChildFailedError) Error() string {
	if e.Report == nil {
		return fmt.Sprintf("run %s failed", e.RunID)
	}
	t := e.Report.Totals
	return fmt.Sprintf("run %s failed: %d failed, %d cancelled of %d tasks", e.RunID, t.Failed, t.Cancelled, t.Tasks)
}

func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return true
	}
	var declErr *component.DeclarationError
	return errors.As(err, &declErr) || errors.Is(err, taskgraph.ErrCycle)
}

// ExitCode maps a run outcome onto the process exit convention.
func ExitCode(rep *RunReport, err error) int {
	if err != nil {
		if IsConfigError(err) {
			return ExitConfigError
		}
		return ExitTaskFailure
	}
	if rep != nil && !rep.Succeeded() {
		return ExitTaskFailure
	}
	return ExitSuccess
}
