package component

import (
	"errors"
	"strings"
	"testing"
)

func mustStore(t *testing.T, specs ...Spec) *Store {
	t.Helper()
	s, err := NewStore(File{Components: specs}, "")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return s
}

func deps(ids ...string) []DependencySpec {
	out := make([]DependencySpec, 0, len(ids))
	for _, id := range ids {
		out = append(out, DependencySpec{ID: id})
	}
	return out
}

func TestStoreTransitiveWalks(t *testing.T) {
	s := mustStore(t,
		Spec{ID: "web", Paths: []string{"web/"}, DependsOn: deps("api")},
		Spec{ID: "api", Paths: []string{"api/"}, DependsOn: deps("db", "cache")},
		Spec{ID: "cache", Paths: []string{"cache/"}},
		Spec{ID: "db", Paths: []string{"db/"}},
		Spec{ID: "docs", Paths: []string{"docs/"}},
	)
	if got := strings.Join(s.DepsOf("web"), ","); got != "api,cache,db" {
		t.Fatalf("DepsOf(web)=%s", got)
	}
	if got := strings.Join(s.DependentsOf("db"), ","); got != "web,api" {
		t.Fatalf("DependentsOf(db)=%s", got)
	}
	closure, err := s.Closure([]string{"api"})
	if err != nil {
		t.Fatalf("closure: %v", err)
	}
	if got := strings.Join(closure, ","); got != "api,cache,db" {
		t.Fatalf("Closure(api)=%s", got)
	}
	if _, err := s.Closure([]string{"nope"}); !errors.Is(err, ErrUnknownComponent) {
		t.Fatalf("expected unknown component error, got %v", err)
	}
}

func TestStoreWalksTolerateCycles(t *testing.T) {
	s := mustStore(t,
		Spec{ID: "a", Paths: []string{"a/"}, DependsOn: deps("b")},
		Spec{ID: "b", Paths: []string{"b/"}, DependsOn: deps("a")},
	)
	if got := strings.Join(s.DepsOf("a"), ","); got != "b" {
		t.Fatalf("DepsOf(a)=%s", got)
	}
	closure, err := s.Closure([]string{"a"})
	if err != nil {
		t.Fatalf("closure: %v", err)
	}
	if len(closure) != 2 {
		t.Fatalf("unexpected closure %v", closure)
	}
}

func TestOwnership(t *testing.T) {
	s := mustStore(t,
		Spec{ID: "api", Paths: []string{"services/api/"}},
		Spec{ID: "apigw", Paths: []string{"services/api"}},
		Spec{ID: "protos", Patterns: []string{"**/*.proto"}},
	)
	cases := []struct {
		path string
		want string
	}{
		{path: "services/api/main.go", want: "api,apigw"},
		{path: "services/api-gateway/main.go", want: "apigw"},
		{path: "lib/x/service.proto", want: "protos"},
		{path: "README.md", want: ""},
	}
	for _, tc := range cases {
		if got := strings.Join(s.Owners(tc.path), ","); got != tc.want {
			t.Fatalf("Owners(%s)=%q want %q", tc.path, got, tc.want)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"./services/api/": "services/api/",
		"/services/api":   "services/api",
		"a//b/../c":       "a/c",
		"./":              "",
		"  x/y  ":         "x/y",
	}
	for in, want := range cases {
		if got := NormalizePath(in); got != want {
			t.Fatalf("NormalizePath(%q)=%q want %q", in, got, want)
		}
	}
}

func TestParseStage(t *testing.T) {
	for _, st := range AllStages {
		got, err := ParseStage(strings.ToUpper(st.String()))
		if err != nil || got != st {
			t.Fatalf("ParseStage(%s)=%v,%v", st, got, err)
		}
	}
	if _, err := ParseStage("lint"); err == nil {
		t.Fatalf("expected error for unknown stage")
	}
}
