// File: internal/emit/doc.go
// Brief: Serializers downstream of the task graph.

// Package emit serializes a built task graph for external consumers: a
// GitLab child pipeline and a Graphviz rendering. The graph stays the
// source of truth; nothing here feeds back into scheduling.
package emit
