// File: internal/component/validate.go
// Brief: Structural and semantic validation of declaration files.

package component

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moby/patternmatcher"
)

var componentIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("componentid", func(fl validator.FieldLevel) bool {
			return componentIDPattern.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// Validate runs struct-level checks (required fields, id syntax).
func (f *File) Validate() error {
	err := structValidator().Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return declErr(ErrInvalidDeclaration, nil, "%v", err)
	}
	var ids []string
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "File.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "componentid":
			msgs = append(msgs, fmt.Sprintf("%s %q is not a valid component id", field, fe.Value()))
			ids = append(ids, fmt.Sprint(fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %q", field, fe.Tag()))
		}
	}
	return declErr(ErrInvalidDeclaration, ids, "%s", strings.Join(msgs, "; "))
}

func normalizeSpec(s Spec) (Component, error) {
	c := Component{
		ID:    strings.TrimSpace(s.ID),
		Paths: normalizePaths(s.Paths),
		Dir:   NormalizePath(s.Dir),
		Env:   copyEnv(s.Env),
	}
	for _, raw := range s.Paths {
		if strings.TrimSpace(raw) != "" && NormalizePath(raw) == "" {
			return Component{}, declErr(ErrInvalidDeclaration, []string{c.ID}, "path %q resolves to the repository root (use globalPaths)", raw)
		}
	}
	if len(s.Patterns) > 0 {
		pm, err := patternmatcher.New(s.Patterns)
		if err != nil {
			return Component{}, declErr(ErrInvalidDeclaration, []string{c.ID}, "patterns: %v", err)
		}
		c.Patterns = append([]string(nil), s.Patterns...)
		c.matcher = pm
	}
	if len(c.Paths) == 0 && c.matcher == nil {
		return Component{}, declErr(ErrInvalidDeclaration, []string{c.ID}, "component must declare paths or patterns")
	}

	stages, err := normalizeStages(c.ID, s.Stages)
	if err != nil {
		return Component{}, err
	}
	c.Stages = stages

	if len(s.Commands) > 0 {
		c.Commands = map[Stage]string{}
		for name, cmd := range s.Commands {
			st, err := ParseStage(name)
			if err != nil {
				return Component{}, declErr(ErrInvalidStage, []string{c.ID}, "commands: %v", err)
			}
			if !c.HasStage(st) {
				return Component{}, declErr(ErrInvalidStage, []string{c.ID}, "commands.%s: component does not run the %s stage", name, st)
			}
			c.Commands[st] = strings.TrimSpace(cmd)
		}
	}
	if len(s.Timeouts) > 0 {
		c.Timeouts = map[Stage]time.Duration{}
		for name, raw := range s.Timeouts {
			st, err := ParseStage(name)
			if err != nil {
				return Component{}, declErr(ErrInvalidStage, []string{c.ID}, "timeouts: %v", err)
			}
			d, err := time.ParseDuration(strings.TrimSpace(raw))
			if err != nil || d < 0 {
				return Component{}, declErr(ErrInvalidDeclaration, []string{c.ID}, "timeouts.%s: invalid duration %q", name, raw)
			}
			c.Timeouts[st] = d
		}
	}

	seen := map[string]struct{}{}
	for _, dep := range s.DependsOn {
		id := strings.TrimSpace(dep.ID)
		if _, ok := seen[id]; ok {
			return Component{}, declErr(ErrInvalidDeclaration, []string{c.ID, id}, "dependency %q listed more than once", id)
		}
		seen[id] = struct{}{}
		c.DependsOn = append(c.DependsOn, Dependency{ID: id, AllowFailure: dep.AllowFailure})
	}
	return c, nil
}

// normalizeStages sorts stages into canonical order. An empty list means
// every stage.
func normalizeStages(id string, raw []string) ([]Stage, error) {
	if len(raw) == 0 {
		return append([]Stage(nil), AllStages...), nil
	}
	seen := map[Stage]struct{}{}
	out := make([]Stage, 0, len(raw))
	for _, name := range raw {
		st, err := ParseStage(name)
		if err != nil {
			return nil, declErr(ErrInvalidStage, []string{id}, "%v", err)
		}
		if _, ok := seen[st]; ok {
			return nil, declErr(ErrInvalidStage, []string{id}, "stage %s listed more than once", st)
		}
		seen[st] = struct{}{}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func copyEnv(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
