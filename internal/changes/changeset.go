// File: internal/changes/changeset.go
// Brief: Immutable set of changed repository paths.

package changes

import (
	"sort"

	"github.com/example/monopipe/internal/component"
)

// ChangeSet is an immutable, normalized, sorted set of changed paths.
type ChangeSet struct {
	paths []string
}

func NewChangeSet(paths ...string) ChangeSet {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = component.NormalizePath(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return ChangeSet{paths: out}
}

func (c ChangeSet) Paths() []string { return append([]string(nil), c.paths...) }

func (c ChangeSet) Len() int { return len(c.paths) }

func (c ChangeSet) Empty() bool { return len(c.paths) == 0 }

// Union returns a new set containing the paths of both sets.
func (c ChangeSet) Union(other ChangeSet) ChangeSet {
	return NewChangeSet(append(c.Paths(), other.paths...)...)
}
