// File: internal/component/store.go
// Brief: Read-only dependency graph store over validated components.

package component

import (
	"sort"
	"strings"
)

// Store holds the validated component set. It is safe for concurrent reads.
type Store struct {
	source      string
	globalPaths []string
	components  []*Component
	index       map[string]int
	dependents  map[string][]string
}

// NewStore validates f and builds the store. Duplicate ids and dependencies
// on undeclared components are rejected here, before any run starts.
// Cycles are left to the graph builder.
func NewStore(f File, source string) (*Store, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	s := &Store{
		source:      source,
		globalPaths: normalizePaths(f.GlobalPaths),
		index:       map[string]int{},
		dependents:  map[string][]string{},
	}
	var dupes []string
	for _, spec := range f.Components {
		c, err := normalizeSpec(spec)
		if err != nil {
			return nil, err
		}
		if _, ok := s.index[c.ID]; ok {
			dupes = append(dupes, c.ID)
			continue
		}
		s.index[c.ID] = len(s.components)
		cc := c
		s.components = append(s.components, &cc)
	}
	if len(dupes) > 0 {
		return nil, declErr(ErrDuplicateComponent, dedupeStrings(dupes), "component ids must be unique")
	}

	var missing []string
	var owners []string
	for _, c := range s.components {
		for _, dep := range c.DependsOn {
			if _, ok := s.index[dep.ID]; !ok {
				missing = append(missing, dep.ID)
				owners = append(owners, c.ID)
				continue
			}
			s.dependents[dep.ID] = append(s.dependents[dep.ID], c.ID)
		}
	}
	if len(missing) > 0 {
		ids := dedupeStrings(append(owners, missing...))
		return nil, declErr(ErrUndeclaredDependency, ids, "undeclared: %s", strings.Join(dedupeStrings(missing), ", "))
	}
	for k := range s.dependents {
		s.sortByIndex(s.dependents[k])
	}
	return s, nil
}

// Source is the declaration file the store was loaded from, if any.
func (s *Store) Source() string { return s.source }

func (s *Store) GlobalPaths() []string { return append([]string(nil), s.globalPaths...) }

func (s *Store) Len() int { return len(s.components) }

// Components returns every component in declaration order.
func (s *Store) Components() []*Component {
	return append([]*Component(nil), s.components...)
}

func (s *Store) Component(id string) (*Component, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.components[i], true
}

// Index returns the declaration position of id, or -1.
func (s *Store) Index(id string) int {
	if i, ok := s.index[id]; ok {
		return i
	}
	return -1
}

// Global returns the global path prefix matching p, if any.
func (s *Store) Global(p string) (string, bool) {
	for _, g := range s.globalPaths {
		if strings.HasPrefix(p, g) {
			return g, true
		}
	}
	return "", false
}

// Owners returns the ids of every component owning p, in declaration order.
func (s *Store) Owners(p string) []string {
	var out []string
	for _, c := range s.components {
		if _, ok := c.Owns(p); ok {
			out = append(out, c.ID)
		}
	}
	return out
}

// DepsOf returns the transitive dependencies of id in declaration order.
func (s *Store) DepsOf(id string) []string {
	var out []string
	seen := map[string]struct{}{id: {}}
	var walk func(string)
	walk = func(cur string) {
		c, ok := s.Component(cur)
		if !ok {
			return
		}
		for _, dep := range c.DependsOn {
			if _, ok := seen[dep.ID]; ok {
				continue
			}
			seen[dep.ID] = struct{}{}
			out = append(out, dep.ID)
			walk(dep.ID)
		}
	}
	walk(id)
	s.sortByIndex(out)
	return out
}

// DependentsOf returns every component that transitively depends on id.
func (s *Store) DependentsOf(id string) []string {
	var out []string
	seen := map[string]struct{}{id: {}}
	var walk func(string)
	walk = func(cur string) {
		for _, next := range s.dependents[cur] {
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			out = append(out, next)
			walk(next)
		}
	}
	walk(id)
	s.sortByIndex(out)
	return out
}

// Closure returns seed plus its transitive dependencies in declaration order.
func (s *Store) Closure(seed []string) ([]string, error) {
	set := map[string]struct{}{}
	var unknown []string
	for _, id := range seed {
		if _, ok := s.index[id]; !ok {
			unknown = append(unknown, id)
			continue
		}
		set[id] = struct{}{}
		for _, dep := range s.DepsOf(id) {
			set[dep] = struct{}{}
		}
	}
	if len(unknown) > 0 {
		return nil, declErr(ErrUnknownComponent, dedupeStrings(unknown), "not declared in %s", s.describeSource())
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	s.sortByIndex(out)
	return out, nil
}

func (s *Store) sortByIndex(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool { return s.index[ids[i]] < s.index[ids[j]] })
}

func (s *Store) describeSource() string {
	if s.source == "" {
		return "declarations"
	}
	return s.source
}

func dedupeStrings(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
