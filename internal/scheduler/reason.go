// File: internal/scheduler/reason.go
// Brief: Distinguished terminal reason codes.

package scheduler

// Reason explains why a task ended in its terminal state.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonScriptFailure     Reason = "script_failure"
	ReasonTimeout           Reason = "timeout"
	ReasonInfrastructure    Reason = "infrastructure"
	ReasonExecutorPanic     Reason = "executor_panic"
	ReasonUpstreamFailed    Reason = "upstream_failed"
	ReasonFailFast          Reason = "fail_fast"
	ReasonCancelled         Reason = "cancelled"
	ReasonUnchanged         Reason = "unchanged"
	ReasonUpstreamSucceeded Reason = "upstream_succeeded"
)
