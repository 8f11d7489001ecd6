// File: internal/telemetry/summary.go
// Brief: Phase timing and the one-line run summary.

package telemetry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Summary is the footer printed after plan and run.
type Summary struct {
	Total     time.Duration
	Phases    map[string]time.Duration
	Executed  int
	Skipped   int
	Failed    int
	Cancelled int
	Retries   int
}

func (s Summary) Line() string {
	var parts []string
	if s.Total > 0 {
		parts = append(parts, fmt.Sprintf("total=%s", formatDuration(s.Total)))
	}
	if len(s.Phases) > 0 {
		parts = append(parts, fmt.Sprintf("phases %s", formatPhases(s.Phases)))
	}
	if s.Executed+s.Skipped+s.Failed+s.Cancelled > 0 {
		tasks := fmt.Sprintf("tasks %d run / %d skipped", s.Executed, s.Skipped)
		if s.Failed > 0 {
			tasks += fmt.Sprintf(" / %d failed", s.Failed)
		}
		if s.Cancelled > 0 {
			tasks += fmt.Sprintf(" / %d cancelled", s.Cancelled)
		}
		parts = append(parts, tasks)
	}
	if s.Retries > 0 {
		parts = append(parts, fmt.Sprintf("retries=%d", s.Retries))
	}
	if len(parts) == 0 {
		return ""
	}
	return "Summary: " + strings.Join(parts, " · ")
}

func formatPhases(phases map[string]time.Duration) string {
	keys := make([]string, 0, len(phases))
	for k := range phases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", key, formatDuration(phases[key])))
	}
	return strings.Join(parts, ", ")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	rounded := d.Round(10 * time.Millisecond)
	if rounded <= 0 {
		rounded = d
	}
	return rounded.String()
}

// PhaseTimer accumulates named phase durations. A nil timer is valid and
// only runs the tracked functions.
type PhaseTimer struct {
	mu      sync.Mutex
	started time.Time
	phases  map[string]time.Duration
}

func NewPhaseTimer() *PhaseTimer {
	return &PhaseTimer{
		started: time.Now(),
		phases:  map[string]time.Duration{},
	}
}

func (t *PhaseTimer) Track(name string, fn func() error) error {
	if t == nil {
		return fn()
	}
	start := time.Now()
	err := fn()
	t.Add(name, time.Since(start))
	return err
}

func (t *PhaseTimer) Add(name string, d time.Duration) {
	if t == nil {
		return
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	t.mu.Lock()
	t.phases[name] += d
	t.mu.Unlock()
}

func (t *PhaseTimer) Snapshot() map[string]time.Duration {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]time.Duration, len(t.phases))
	for k, v := range t.phases {
		out[k] = v
	}
	return out
}

func (t *PhaseTimer) Total() time.Duration {
	if t == nil || t.started.IsZero() {
		return 0
	}
	return time.Since(t.started)
}
