// File: internal/scheduler/retry.go
// Brief: Infrastructure error classification and backoff.

package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"
)

func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "TIMEOUT"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "executable file not found") || strings.Contains(msg, "no such file or directory"):
		return "NOT_FOUND"
	case strings.Contains(msg, "permission denied"):
		return "PERMISSION"
	case strings.Contains(msg, "too many open files") || strings.Contains(msg, "resource temporarily unavailable") || strings.Contains(msg, "cannot allocate memory"):
		return "RESOURCES"
	case strings.Contains(msg, "connection reset") || strings.Contains(msg, "connection refused") || strings.Contains(msg, "broken pipe") || strings.Contains(msg, "eof"):
		return "TRANSPORT"
	case strings.Contains(msg, "timeout"):
		return "TIMEOUT"
	default:
		return "OTHER"
	}
}

func isRetryable(err error) bool {
	return err != nil && !errors.Is(err, ErrPermanent)
}

// retryBackoff doubles from 800ms up to 20s with +/-20% jitter. attempt is
// 1-based.
func retryBackoff(attempt int) time.Duration {
	base := 800 * time.Millisecond
	if attempt <= 1 {
		return jitter(base)
	}
	d := base * time.Duration(1<<uint(min(attempt-1, 6)))
	if d > 20*time.Second {
		d = 20 * time.Second
	}
	return jitter(d)
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	f := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(d) * f)
}
