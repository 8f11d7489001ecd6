package ui

import (
	"bytes"
	"testing"
)

func TestNonTerminalWriter(t *testing.T) {
	var buf bytes.Buffer
	if _, ok := TerminalWidth(&buf); ok {
		t.Fatalf("buffer is not a terminal")
	}
	if ColorEnabled(&buf) {
		t.Fatalf("buffer should not get color")
	}
}

func TestNoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if ColorEnabled(&bytes.Buffer{}) {
		t.Fatalf("NO_COLOR must disable color")
	}
}
