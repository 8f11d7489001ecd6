// File: internal/version/version.go
// Brief: Build metadata stamped through -ldflags.

package version

import (
	"fmt"
	"runtime"
	"strings"
)

// These values are overridden at build time via
// -ldflags "-X github.com/example/monopipe/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown" // RFC3339 UTC preferred
)

type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit,omitempty"`
	BuildDate string `json:"buildDate,omitempty"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String renders one "Key: value" line per known field; unknown build
// metadata is left out.
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Version: %s\n", i.Version)
	if i.GitCommit != "" && i.GitCommit != "unknown" {
		fmt.Fprintf(&b, "GitCommit: %s\n", i.GitCommit)
	}
	if i.BuildDate != "" && i.BuildDate != "unknown" {
		fmt.Fprintf(&b, "BuildDate: %s\n", i.BuildDate)
	}
	fmt.Fprintf(&b, "GoVersion: %s\n", i.GoVersion)
	fmt.Fprintf(&b, "Platform: %s\n", i.Platform)
	return b.String()
}
