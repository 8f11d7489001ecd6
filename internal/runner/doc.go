// File: internal/runner/doc.go
// Brief: Run controller package documentation.

// Package runner is the run controller. It turns a change set into a task
// graph, executes it through the scheduler and hands the sealed report back
// either synchronously (depend) or through a handle (detached).
package runner
