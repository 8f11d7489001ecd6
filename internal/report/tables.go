// File: internal/report/tables.go
// Brief: Human-friendly tables for affected, plan and run output.

package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/example/monopipe/internal/changes"
	"github.com/example/monopipe/internal/runner"
	"github.com/example/monopipe/internal/taskgraph"
	"github.com/example/monopipe/internal/telemetry"
)

// Affected prints the change detection result.
func Affected(w io.Writer, format Format, res changes.Result) error {
	if format != FormatTable {
		return writeStructured(w, format, res)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPONENT\tCHANGED\tREASONS")
	for _, id := range res.Affected {
		fmt.Fprintf(tw, "%s\t%t\t%s\n", id, res.IsChanged(id), strings.Join(res.Reasons[id], ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(res.Affected) == 0 {
		fmt.Fprintln(w, "No component affected.")
	}
	if n := res.UnmatchedCount(); n > 0 {
		fmt.Fprintf(w, "%d changed path(s) outside every component\n", n)
	}
	return nil
}

// PlanView is the serializable form of a plan.
type PlanView struct {
	Fingerprint string              `json:"fingerprint"`
	Changed     []string            `json:"changed"`
	Affected    []string            `json:"affected"`
	Reasons     map[string][]string `json:"reasons,omitempty"`
	Unmatched   []string            `json:"unmatched,omitempty"`
	Tasks       []PlanTask          `json:"tasks"`
	Edges       []string            `json:"edges"`
}

type PlanTask struct {
	ID      string `json:"id"`
	Wave    int    `json:"wave"`
	State   string `json:"state"`
	Gated   bool   `json:"gated,omitempty"`
	Command string `json:"command,omitempty"`
}

func NewPlanView(p *runner.Plan) PlanView {
	g := p.Graph
	v := PlanView{
		Fingerprint: g.Fingerprint(),
		Changed:     p.Detection.Changed,
		Affected:    p.Detection.Affected,
		Reasons:     p.Detection.Reasons,
		Unmatched:   p.Detection.Unmatched,
		Tasks:       []PlanTask{},
		Edges:       []string{},
	}
	wave := map[taskgraph.Key]int{}
	for i, keys := range g.Waves() {
		for _, k := range keys {
			wave[k] = i + 1
		}
	}
	for _, t := range g.Tasks() {
		v.Tasks = append(v.Tasks, PlanTask{
			ID:      t.ID(),
			Wave:    wave[t.Key],
			State:   t.InitialState.String(),
			Gated:   t.SkipIfUpstreamSucceeds,
			Command: t.Command,
		})
	}
	for _, e := range g.Edges() {
		v.Edges = append(v.Edges, e.String())
	}
	return v
}

// Plan prints the task graph without running it.
func Plan(w io.Writer, format Format, style Style, p *runner.Plan) error {
	view := NewPlanView(p)
	if format != FormatTable {
		return writeStructured(w, format, view)
	}
	fmt.Fprintf(w, "Graph %s: %d task(s), %d edge(s), %d component(s) changed\n",
		view.Fingerprint, len(view.Tasks), len(view.Edges), len(view.Changed))
	if len(view.Tasks) == 0 {
		fmt.Fprintln(w, "Nothing to do.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WAVE\tTASK\tSTART\tCOMMAND")
	for _, t := range view.Tasks {
		start := style.state(parseState(t.State))
		if t.Gated {
			start += " (gated)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.Wave, t.ID, start, style.cell(t.Command))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EDGES")
	for _, e := range view.Edges {
		fmt.Fprintf(w, "  %s\n", e)
	}
	return nil
}

// Run prints a sealed run report.
func Run(w io.Writer, format Format, style Style, rep *runner.RunReport) error {
	if format != FormatTable {
		return writeStructured(w, format, rep)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "RUN\t%s\n", rep.RunID)
	fmt.Fprintf(tw, "STRATEGY\t%s\n", rep.Strategy)
	fmt.Fprintf(tw, "STATUS\t%s\n", rep.Status)
	fmt.Fprintf(tw, "GRAPH\t%s\n", rep.Fingerprint)
	t := rep.Totals
	fmt.Fprintf(tw, "TOTALS\ttasks=%d succeeded=%d failed=%d cancelled=%d skipped=%d\n", t.Tasks, t.Succeeded, t.Failed, t.Cancelled, t.Skipped)
	fmt.Fprintln(tw)
	if len(rep.Tasks) > 0 {
		fmt.Fprintln(tw, "TASK\tSTATE\tREASON\tATTEMPTS\tDURATION\tERROR")
		for _, tr := range rep.Tasks {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
				tr.ID, style.state(tr.State), dash(string(tr.Reason)), tr.Attempts,
				formatDuration(tr.Duration), style.cell(strings.TrimSpace(tr.Error)))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if line := summaryFor(rep).Line(); line != "" {
		fmt.Fprintln(w, line)
	}
	return nil
}

func summaryFor(rep *runner.RunReport) telemetry.Summary {
	s := telemetry.Summary{
		Total:     rep.Duration,
		Phases:    rep.Phases,
		Skipped:   rep.Totals.Skipped,
		Failed:    rep.Totals.Failed,
		Cancelled: rep.Totals.Cancelled,
	}
	for _, tr := range rep.Tasks {
		if tr.Attempts > 0 {
			s.Executed++
			s.Retries += tr.Attempts - 1
		}
	}
	return s
}

func parseState(raw string) taskgraph.State {
	var st taskgraph.State
	if err := st.UnmarshalText([]byte(raw)); err != nil {
		return taskgraph.StatePending
	}
	return st
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}
