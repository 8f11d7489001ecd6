// File: internal/scheduler/doc.go
// Brief: Bounded, dependency-ordered task execution.

// Package scheduler executes a taskgraph.Graph with a fixed-size worker pool.
// Each task carries its own lock; a single dispatcher goroutine rescans the
// inbound edges of a completed task's successors and keeps the ready queue
// in declaration order.
package scheduler
