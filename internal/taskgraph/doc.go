// File: internal/taskgraph/doc.go
// Brief: Typed task DAG and the graph builder.

// Package taskgraph turns the affected component set into an immutable DAG of
// (component, stage) tasks. Runtime state lives in the scheduler, never here.
package taskgraph
