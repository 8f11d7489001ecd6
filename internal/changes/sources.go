// File: internal/changes/sources.go
// Brief: Change sources: git ranges, unified diffs, and path lists.

package changes

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// GitChangedFiles returns the paths touched by gitRange ("A..B", "A...B" or
// a single revision) relative to the repository root.
func GitChangedFiles(ctx context.Context, root string, gitRange string) ([]string, error) {
	gr := strings.TrimSpace(gitRange)
	if gr == "" {
		return nil, nil
	}
	cmd := exec.CommandContext(ctx, "git", "-C", root, "diff", "--name-only", gr)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("git diff %s: %s", gr, msg)
		}
		return nil, fmt.Errorf("git diff %s: %w", gr, err)
	}
	return ReadPathList(&stdout)
}

// FromUnifiedDiff extracts both sides of every file in a unified diff, so
// renames mark the old and the new owner.
func FromUnifiedDiff(r io.Reader) ([]string, error) {
	files, err := diff.NewMultiFileDiffReader(r).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}
	var out []string
	for _, fd := range files {
		for _, name := range []string{fd.OrigName, fd.NewName} {
			if p := stripDiffPrefix(name); p != "" {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func stripDiffPrefix(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || name == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}

// ReadPathList reads one path per line. Blank lines and lines starting with
// '#' are ignored.
func ReadPathList(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
