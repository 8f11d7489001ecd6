// File: internal/executor/doc.go
// Brief: Task executor package documentation.

// Package executor provides the scheduler.TaskExecutor implementations used
// by the CLI: local processes and a dry-run reporter.
package executor
