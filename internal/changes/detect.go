// File: internal/changes/detect.go
// Brief: Map changed paths to changed and affected components.

package changes

import (
	"github.com/example/monopipe/internal/component"
)

const (
	ReasonChanged      = "changed:"
	ReasonGlobal       = "global:"
	ReasonDependencyOf = "dependency-of:"
	ReasonDependentOf  = "dependent-of:"
)

type Options struct {
	// IncludeDependents promotes every component that transitively depends
	// on a changed component to changed.
	IncludeDependents bool
}

// Result is the outcome of change detection. Changed holds components whose
// own paths matched; Affected adds their dependency closure. Both are in
// declaration order.
type Result struct {
	Changed   []string            `json:"changed"`
	Affected  []string            `json:"affected"`
	Reasons   map[string][]string `json:"reasons,omitempty"`
	Unmatched []string            `json:"unmatched,omitempty"`
}

func (r Result) UnmatchedCount() int { return len(r.Unmatched) }

func (r Result) IsChanged(id string) bool {
	for _, c := range r.Changed {
		if c == id {
			return true
		}
	}
	return false
}

// Empty reports whether nothing needs to run.
func (r Result) Empty() bool { return len(r.Affected) == 0 }

// Detect maps cs onto the components in store. Paths owned by no component
// are not an error; they are listed in Unmatched.
func Detect(cs ChangeSet, store *component.Store, opts Options) Result {
	res := Result{Reasons: map[string][]string{}}
	if cs.Empty() || store == nil {
		return res
	}
	changed := map[string]struct{}{}
	addReason := func(id, reason string) {
		for _, r := range res.Reasons[id] {
			if r == reason {
				return
			}
		}
		res.Reasons[id] = append(res.Reasons[id], reason)
	}

	for _, p := range cs.Paths() {
		if g, ok := store.Global(p); ok {
			for _, c := range store.Components() {
				changed[c.ID] = struct{}{}
				addReason(c.ID, ReasonGlobal+g)
			}
			continue
		}
		owners := store.Owners(p)
		if len(owners) == 0 {
			res.Unmatched = append(res.Unmatched, p)
			continue
		}
		for _, id := range owners {
			changed[id] = struct{}{}
			addReason(id, ReasonChanged+p)
		}
	}

	if opts.IncludeDependents {
		promoted := map[string]struct{}{}
		for _, id := range sortedByIndex(store, changed) {
			for _, dep := range store.DependentsOf(id) {
				if _, ok := changed[dep]; ok {
					continue
				}
				promoted[dep] = struct{}{}
				addReason(dep, ReasonDependentOf+id)
			}
		}
		for id := range promoted {
			changed[id] = struct{}{}
		}
	}

	res.Changed = sortedByIndex(store, changed)
	affected := map[string]struct{}{}
	for _, id := range res.Changed {
		affected[id] = struct{}{}
	}
	for _, id := range res.Changed {
		for _, dep := range store.DepsOf(id) {
			affected[dep] = struct{}{}
			if _, ok := changed[dep]; !ok {
				addReason(dep, ReasonDependencyOf+id)
			}
		}
	}
	res.Affected = sortedByIndex(store, affected)
	return res
}

func sortedByIndex(store *component.Store, set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for _, c := range store.Components() {
		if _, ok := set[c.ID]; ok {
			out = append(out, c.ID)
		}
	}
	return out
}
