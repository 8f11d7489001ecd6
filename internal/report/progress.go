// File: internal/report/progress.go
// Brief: Streaming progress lines fed by scheduler events.

package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/example/monopipe/internal/scheduler"
)

// Progress prints one line per task transition worth seeing live. It is a
// scheduler.Observer; events already arrive serialized but writes to w are
// guarded anyway because detached runs may share a writer.
type Progress struct {
	mu    sync.Mutex
	w     io.Writer
	style Style
}

func NewProgress(w io.Writer, style Style) *Progress {
	return &Progress{w: w, style: style}
}

func (p *Progress) ObserveEvent(ev scheduler.Event) {
	line := p.format(ev)
	if line == "" {
		return
	}
	p.mu.Lock()
	fmt.Fprintln(p.w, line)
	p.mu.Unlock()
}

func (p *Progress) format(ev scheduler.Event) string {
	switch ev.Type {
	case scheduler.RunStarted:
		return fmt.Sprintf("%s run %s %s", p.style.paint(color.FgHiBlue, "▶"), ev.RunID, ev.Message)
	case scheduler.TaskRunning:
		return fmt.Sprintf("  %s %s", p.style.state(ev.State), ev.Task)
	case scheduler.RetryScheduled:
		return fmt.Sprintf("  %s %s: %s", p.style.paint(color.FgYellow, "retry"), ev.Task, ev.Message)
	case scheduler.TaskSucceeded, scheduler.TaskFailed, scheduler.TaskCancelled, scheduler.TaskSkipped:
		line := fmt.Sprintf("  %s %s", p.style.state(ev.State), ev.Task)
		if ev.Reason != "" {
			line += " [" + string(ev.Reason) + "]"
		}
		if ev.Duration > 0 {
			line += " " + formatDuration(ev.Duration)
		}
		return line
	case scheduler.RunCompleted:
		attr := color.FgHiGreen
		if ev.Status != scheduler.StatusSucceeded {
			attr = color.FgHiRed
		}
		return fmt.Sprintf("%s run %s %s", p.style.paint(attr, "■"), string(ev.Status), ev.Message)
	default:
		return ""
	}
}
