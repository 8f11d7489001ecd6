// File: internal/component/paths.go
// Brief: Repository path normalization shared by declarations and change sets.

package component

import (
	"path"
	"path/filepath"
	"strings"
)

// NormalizePath returns a slash separated, root-relative path. A trailing
// slash is preserved so that directory prefixes keep matching on a
// directory boundary. The repository root normalizes to "".
func NormalizePath(p string) string {
	p = strings.TrimSpace(filepath.ToSlash(p))
	if p == "" {
		return ""
	}
	trailing := strings.HasSuffix(p, "/")
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" {
		return ""
	}
	if trailing {
		p += "/"
	}
	return p
}

func normalizePaths(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, p := range in {
		p = NormalizePath(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
