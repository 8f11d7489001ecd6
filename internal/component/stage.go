// File: internal/component/stage.go
// Brief: Closed set of pipeline stages.

package component

import (
	"fmt"
	"strings"
)

// Stage is one step of a component pipeline. The zero value is StageBuild.
type Stage int

const (
	StageBuild Stage = iota
	StageTest
	StageDeploy
)

// AllStages lists every stage in canonical execution order.
var AllStages = []Stage{StageBuild, StageTest, StageDeploy}

func (s Stage) String() string {
	switch s {
	case StageBuild:
		return "build"
	case StageTest:
		return "test"
	case StageDeploy:
		return "deploy"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

func (s Stage) Valid() bool {
	return s >= StageBuild && s <= StageDeploy
}

func ParseStage(raw string) (Stage, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "build":
		return StageBuild, nil
	case "test":
		return StageTest, nil
	case "deploy":
		return StageDeploy, nil
	default:
		return 0, fmt.Errorf("unknown stage %q (expected build, test, or deploy)", raw)
	}
}

func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid stage %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(b []byte) error {
	v, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
