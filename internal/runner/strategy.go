// File: internal/runner/strategy.go
// Brief: Child run strategies: depend and detached.

package runner

import (
	"fmt"
	"strings"
)

// Strategy decides whether Trigger blocks on the child run.
type Strategy string

const (
	StrategyDepend   Strategy = "depend"
	StrategyDetached Strategy = "detached"
)

func ParseStrategy(raw string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StrategyDepend:
		return StrategyDepend, nil
	case StrategyDetached:
		return StrategyDetached, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (expected depend or detached)", raw)
	}
}
