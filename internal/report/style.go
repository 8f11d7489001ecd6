// File: internal/report/style.go
// Brief: Color and width settings for table cells.

package report

import (
	"io"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/example/monopipe/internal/taskgraph"
	"github.com/example/monopipe/internal/ui"
)

const (
	defaultWidth = 120
	minCellWidth = 24
)

// Style carries the terminal decisions for one output stream.
type Style struct {
	Color bool
	Width int
}

// StyleFor inspects w once.
func StyleFor(w io.Writer) Style {
	width, ok := ui.TerminalWidth(w)
	if !ok {
		width = defaultWidth
	}
	return Style{Color: ui.ColorEnabled(w), Width: width}
}

// Every state uses a single two-digit SGR code so escape sequences add the
// same width to each cell and tabwriter columns stay aligned.
var stateAttrs = map[taskgraph.State]color.Attribute{
	taskgraph.StatePending:   color.FgWhite,
	taskgraph.StateReady:     color.FgCyan,
	taskgraph.StateRunning:   color.FgHiBlue,
	taskgraph.StateSucceeded: color.FgHiGreen,
	taskgraph.StateFailed:    color.FgHiRed,
	taskgraph.StateCancelled: color.FgYellow,
	taskgraph.StateSkipped:   color.FgHiBlack,
}

func (s Style) state(st taskgraph.State) string {
	return s.paint(stateAttrs[st], st.String())
}

func (s Style) paint(attr color.Attribute, text string) string {
	c := color.New(attr)
	if s.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(text)
}

// cell truncates free text so one long command or error cannot wrap the
// whole table.
func (s Style) cell(text string) string {
	limit := s.Width / 3
	if limit < minCellWidth {
		limit = minCellWidth
	}
	return runewidth.Truncate(text, limit, "…")
}
