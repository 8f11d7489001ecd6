package telemetry

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSummaryLine(t *testing.T) {
	cases := []struct {
		name string
		in   Summary
		want string
	}{
		{name: "empty", in: Summary{}, want: ""},
		{
			name: "phases sorted",
			in:   Summary{Total: 2 * time.Second, Phases: map[string]time.Duration{"execute": time.Second, "build": 20 * time.Millisecond}},
			want: "Summary: total=2s · phases build=20ms, execute=1s",
		},
		{
			name: "tasks",
			in:   Summary{Executed: 3, Skipped: 2, Failed: 1, Retries: 2},
			want: "Summary: tasks 3 run / 2 skipped / 1 failed · retries=2",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.Line(); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestPhaseTimerTrack(t *testing.T) {
	pt := NewPhaseTimer()
	boom := errors.New("boom")
	if err := pt.Track("detect", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected tracked error, got %v", err)
	}
	pt.Add(" ", time.Second)
	snap := pt.Snapshot()
	if _, ok := snap["detect"]; !ok || len(snap) != 1 {
		t.Fatalf("unexpected phases: %v", snap)
	}

	var nilTimer *PhaseTimer
	called := false
	_ = nilTimer.Track("x", func() error { called = true; return nil })
	if !called || nilTimer.Snapshot() != nil {
		t.Fatalf("nil timer should only run the function")
	}
	if !strings.HasPrefix((Summary{Total: time.Millisecond}).Line(), "Summary: total=") {
		t.Fatalf("unexpected total line")
	}
}
