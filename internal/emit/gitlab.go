// File: internal/emit/gitlab.go
// Brief: GitLab child-pipeline YAML from a task graph.

package emit

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/monopipe/internal/component"
	"github.com/example/monopipe/internal/taskgraph"
)

const noopJob = "monopipe:noop"

type GitLabOptions struct {
	// Image is set as the pipeline default image when non-empty.
	Image string
	// Tags are applied to every job.
	Tags []string
}

// GitLab renders the tasks that would execute as a child pipeline. Tasks
// that start Skipped or are gated on their upstream are left out; their
// dependents need the nearest emitted ancestors instead. An empty graph
// yields a single no-op job because GitLab rejects empty pipelines.
func GitLab(g *taskgraph.Graph, opts GitLabOptions) ([]byte, error) {
	if g == nil {
		return nil, fmt.Errorf("task graph is nil")
	}
	emitted := map[taskgraph.Key]bool{}
	var jobs []*taskgraph.Task
	for _, t := range g.Tasks() {
		if t.InitialState == taskgraph.StateSkipped || t.SkipIfUpstreamSucceeds {
			continue
		}
		emitted[t.Key] = true
		jobs = append(jobs, t)
	}
	tolerated := map[taskgraph.Key]bool{}
	for _, e := range g.Edges() {
		if e.AllowFailure {
			tolerated[e.From] = true
		}
	}

	root := mapping()
	if g.Len() > 0 {
		root.HeadComment = "Generated by monopipe; graph " + g.Fingerprint()
	}
	stagesUsed := map[component.Stage]bool{}
	for _, t := range jobs {
		stagesUsed[t.Key.Stage] = true
	}
	if len(jobs) == 0 {
		stagesUsed[component.StageBuild] = true
	}
	var stages []*yaml.Node
	for _, st := range component.AllStages {
		if stagesUsed[st] {
			stages = append(stages, scalar(st.String()))
		}
	}
	addPair(root, "stages", sequence(stages...))
	if opts.Image != "" {
		addPair(root, "default", mapping("image", scalar(opts.Image)))
	}

	if len(jobs) == 0 {
		job := mapping(
			"stage", scalar(component.StageBuild.String()),
			"script", sequence(scalar(`echo "no component changed"`)),
		)
		addTags(job, opts.Tags)
		addPair(root, noopJob, job)
	}
	for _, t := range jobs {
		job := mapping("stage", scalar(t.Key.Stage.String()))
		if len(t.Env) > 0 {
			keys := make([]string, 0, len(t.Env))
			for k := range t.Env {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			vars := mapping()
			for _, k := range keys {
				addPair(vars, k, scalar(t.Env[k]))
			}
			addPair(job, "variables", vars)
		}
		addPair(job, "script", sequence(scalar(script(t))))
		needs := sequence()
		for _, k := range emittedNeeds(g, t.Key, emitted) {
			needs.Content = append(needs.Content, scalar(k.String()))
		}
		addPair(job, "needs", needs)
		if t.Timeout > 0 {
			addPair(job, "timeout", scalar(gitlabDuration(t.Timeout)))
		}
		if tolerated[t.Key] {
			addPair(job, "allow_failure", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "true"})
		}
		addTags(job, opts.Tags)
		addPair(root, t.ID(), job)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}); err != nil {
		return nil, fmt.Errorf("encode pipeline: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// emittedNeeds walks inbound edges through omitted tasks until it reaches
// emitted ones. Result is in graph declaration order.
func emittedNeeds(g *taskgraph.Graph, k taskgraph.Key, emitted map[taskgraph.Key]bool) []taskgraph.Key {
	found := map[taskgraph.Key]bool{}
	seen := map[taskgraph.Key]bool{}
	stack := []taskgraph.Key{k}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.Inbound(cur) {
			if seen[e.From] {
				continue
			}
			seen[e.From] = true
			if emitted[e.From] {
				found[e.From] = true
				continue
			}
			stack = append(stack, e.From)
		}
	}
	var out []taskgraph.Key
	for _, t := range g.Tasks() {
		if found[t.Key] {
			out = append(out, t.Key)
		}
	}
	return out
}

func script(t *taskgraph.Task) string {
	cmd := t.Command
	if cmd == "" {
		cmd = fmt.Sprintf("echo %q", t.ID()+": nothing to run")
	}
	if t.Dir != "" {
		cmd = fmt.Sprintf("cd %q && %s", t.Dir, cmd)
	}
	return cmd
}

func gitlabDuration(d time.Duration) string {
	if d%time.Minute == 0 {
		return fmt.Sprintf("%dm", int(d/time.Minute))
	}
	return fmt.Sprintf("%ds", int((d+time.Second-1)/time.Second))
}

func addTags(job *yaml.Node, tags []string) {
	if len(tags) == 0 {
		return
	}
	seq := sequence()
	for _, t := range tags {
		seq.Content = append(seq.Content, scalar(t))
	}
	addPair(job, "tags", seq)
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func sequence(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: items}
}

// mapping builds a mapping node from alternating key, value arguments.
func mapping(kv ...any) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i+1 < len(kv); i += 2 {
		addPair(n, kv[i].(string), kv[i+1].(*yaml.Node))
	}
	return n
}

func addPair(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, scalar(key), value)
}
