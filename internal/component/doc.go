// File: internal/component/doc.go
// Brief: Component declarations and the dependency graph store.

// Package component loads monorepo component declarations (YAML or HCL),
// validates them, and exposes a read-only store answering ownership and
// dependency questions for the rest of monopipe.
package component
