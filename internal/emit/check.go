// File: internal/emit/check.go
// Brief: Drift check between generated and committed pipelines.

package emit

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pmezard/go-difflib/difflib"
)

// Check compares generated output with the file at path and returns a
// unified diff, empty when they match. A missing file diffs against
// nothing.
func Check(generated []byte, path string) (string, error) {
	current, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if string(current) == string(generated) {
		return "", nil
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(current)),
		B:        difflib.SplitLines(string(generated)),
		FromFile: path,
		ToFile:   "generated",
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}
