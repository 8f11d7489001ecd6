// File: internal/component/load.go
// Brief: YAML and HCL declaration loaders.

package component

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up at the repository root when no file is given.
const DefaultFileName = "monopipe.yaml"

// Load reads the declaration file at path (relative paths resolve against
// root) and builds a Store. The declaration file itself is treated as a
// global path when it lives inside root.
func Load(root, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultFileName
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, path)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read declarations: %w", err)
	}
	f, err := Parse(full, data)
	if err != nil {
		return nil, err
	}
	if rel, ok := relativeTo(root, full); ok {
		f.GlobalPaths = append(f.GlobalPaths, rel)
	}
	return NewStore(f, full)
}

// Parse decodes declaration bytes. The format is picked from the file
// extension: .hcl is HCL, anything else is YAML.
func Parse(name string, data []byte) (File, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".hcl":
		return parseHCL(name, data)
	default:
		return parseYAML(name, data)
	}
}

func parseYAML(name string, data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, nil
		}
		return File{}, &DeclarationError{Kind: ErrInvalidDeclaration, Msg: fmt.Sprintf("%s: %v", name, err)}
	}
	return f, nil
}

type hclFile struct {
	GlobalPaths []string       `hcl:"global_paths,optional"`
	Components  []hclComponent `hcl:"component,block"`
}

type hclComponent struct {
	ID           string            `hcl:"id,label"`
	Paths        []string          `hcl:"paths,optional"`
	Patterns     []string          `hcl:"patterns,optional"`
	Stages       []string          `hcl:"stages,optional"`
	DependsOn    []string          `hcl:"depends_on,optional"`
	Dependencies []hclDependency   `hcl:"dependency,block"`
	Commands     map[string]string `hcl:"commands,optional"`
	Timeouts     map[string]string `hcl:"timeouts,optional"`
	Dir          string            `hcl:"dir,optional"`
	Env          map[string]string `hcl:"env,optional"`
}

type hclDependency struct {
	ID           string `hcl:"id,label"`
	AllowFailure bool   `hcl:"allow_failure,optional"`
}

func parseHCL(name string, data []byte) (File, error) {
	var raw hclFile
	if err := hclsimple.Decode(filepath.Base(name), data, nil, &raw); err != nil {
		return File{}, &DeclarationError{Kind: ErrInvalidDeclaration, Msg: err.Error()}
	}
	f := File{GlobalPaths: raw.GlobalPaths}
	for _, hc := range raw.Components {
		spec := Spec{
			ID:       hc.ID,
			Paths:    hc.Paths,
			Patterns: hc.Patterns,
			Stages:   hc.Stages,
			Commands: hc.Commands,
			Timeouts: hc.Timeouts,
			Dir:      hc.Dir,
			Env:      hc.Env,
		}
		for _, id := range hc.DependsOn {
			spec.DependsOn = append(spec.DependsOn, DependencySpec{ID: id})
		}
		for _, d := range hc.Dependencies {
			spec.DependsOn = append(spec.DependsOn, DependencySpec{ID: d.ID, AllowFailure: d.AllowFailure})
		}
		f.Components = append(f.Components, spec)
	}
	return f, nil
}

func relativeTo(root, full string) (string, bool) {
	if root == "" {
		return "", false
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	absFull, err := filepath.Abs(full)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absRoot, absFull)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return NormalizePath(rel), true
}
