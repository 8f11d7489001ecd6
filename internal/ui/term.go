// File: internal/ui/term.go
// Brief: Terminal detection for table width and color decisions.

package ui

import (
	"io"
	"os"

	"golang.org/x/term"
)

type fdProvider interface {
	Fd() uintptr
}

// TerminalWidth reports the column count when w is a terminal.
func TerminalWidth(w io.Writer) (int, bool) {
	if v, ok := w.(fdProvider); ok {
		if cols, _, err := term.GetSize(int(v.Fd())); err == nil && cols > 0 {
			return cols, true
		}
	}
	return 0, false
}

// ColorEnabled is true for terminals unless NO_COLOR is set.
func ColorEnabled(w io.Writer) bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	v, ok := w.(fdProvider)
	return ok && term.IsTerminal(int(v.Fd()))
}
