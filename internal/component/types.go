// File: internal/component/types.go
// Brief: Declaration file schema and the normalized component model.

package component

import (
	"fmt"
	"time"

	"github.com/moby/patternmatcher"
	"gopkg.in/yaml.v3"
)

// File is the on-disk declaration schema shared by the YAML and HCL loaders.
type File struct {
	GlobalPaths []string `yaml:"globalPaths,omitempty" validate:"dive,required"`
	Components  []Spec   `yaml:"components" validate:"dive"`
}

// Spec is a single component as written by the user, before normalization.
type Spec struct {
	ID        string            `yaml:"id" validate:"required,componentid"`
	Paths     []string          `yaml:"paths,omitempty" validate:"dive,required"`
	Patterns  []string          `yaml:"patterns,omitempty" validate:"dive,required"`
	Stages    []string          `yaml:"stages,omitempty"`
	DependsOn []DependencySpec  `yaml:"dependsOn,omitempty" validate:"dive"`
	Commands  map[string]string `yaml:"commands,omitempty"`
	Timeouts  map[string]string `yaml:"timeouts,omitempty"`
	Dir       string            `yaml:"dir,omitempty"`
	Env       map[string]string `yaml:"env,omitempty" validate:"dive,keys,required,endkeys"`
}

// DependencySpec accepts either a bare component id or {id, allowFailure}.
type DependencySpec struct {
	ID           string `yaml:"id" validate:"required,componentid"`
	AllowFailure bool   `yaml:"allowFailure,omitempty"`
}

func (d *DependencySpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		d.ID = node.Value
		d.AllowFailure = false
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: dependsOn entries must be a component id or a mapping", node.Line)
	}
	type plain DependencySpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*d = DependencySpec(p)
	return nil
}

// Dependency is a normalized "depends on" declaration.
type Dependency struct {
	ID           string `json:"id"`
	AllowFailure bool   `json:"allowFailure,omitempty"`
}

// Component is immutable once the store has been built.
type Component struct {
	ID        string                  `json:"id"`
	Paths     []string                `json:"paths,omitempty"`
	Patterns  []string                `json:"patterns,omitempty"`
	Stages    []Stage                 `json:"stages"`
	DependsOn []Dependency            `json:"dependsOn,omitempty"`
	Commands  map[Stage]string        `json:"commands,omitempty"`
	Timeouts  map[Stage]time.Duration `json:"timeouts,omitempty"`
	Dir       string                  `json:"dir,omitempty"`
	Env       map[string]string       `json:"env,omitempty"`

	matcher *patternmatcher.PatternMatcher
}

func (c *Component) HasStage(s Stage) bool {
	for _, st := range c.Stages {
		if st == s {
			return true
		}
	}
	return false
}

func (c *Component) FirstStage() Stage { return c.Stages[0] }

func (c *Component) LastStage() Stage { return c.Stages[len(c.Stages)-1] }

// Owns reports whether the normalized path belongs to the component and
// returns the prefix or pattern that matched.
func (c *Component) Owns(p string) (string, bool) {
	for _, prefix := range c.Paths {
		if len(p) >= len(prefix) && p[:len(prefix)] == prefix {
			return prefix, true
		}
	}
	if c.matcher != nil {
		if ok, err := c.matcher.MatchesOrParentMatches(p); err == nil && ok {
			return "pattern", true
		}
	}
	return "", false
}
