package version

import (
	"strings"
	"testing"
)

func TestInfoStringOmitsUnknownFields(t *testing.T) {
	info := Info{Version: "v1.2.0", GitCommit: "unknown", BuildDate: "2026-01-02T03:04:05Z", GoVersion: "go1.25.7", Platform: "linux/amd64"}
	got := info.String()
	if strings.Contains(got, "GitCommit") {
		t.Fatalf("unknown commit should be omitted:\n%s", got)
	}
	for _, want := range []string{"Version: v1.2.0\n", "BuildDate: 2026-01-02T03:04:05Z\n", "Platform: linux/amd64\n"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in:\n%s", want, got)
		}
	}
}
