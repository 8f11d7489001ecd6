// File: internal/envcatalog/envcatalog.go
// Brief: Environment variables read by monopipe or handed to task commands.

package envcatalog

// Variables the shell executor exports to every task command.
const (
	TaskComponent = "MONOPIPE_COMPONENT"
	TaskStage     = "MONOPIPE_STAGE"
	TaskID        = "MONOPIPE_TASK"
)

const ConfigFile = "MONOPIPE_CONFIG"

// VarInfo describes one variable. Dynamic entries are name patterns with no
// single value; Internal entries are set by monopipe for task processes.
type VarInfo struct {
	Category    string
	Name        string
	Description string
	Dynamic     bool
	Internal    bool
}

func Catalog() []VarInfo {
	return []VarInfo{
		{
			Category:    "Config",
			Name:        ConfigFile,
			Description: "Path to the monopipe config file. A missing file at this path is an error.",
		},
		{
			Category:    "Config",
			Name:        "MONOPIPE_<FLAG>",
			Dynamic:     true,
			Description: "Set any monopipe CLI flag via environment (hyphens become underscores). Example: MONOPIPE_MAX_PARALLEL=8.",
		},
		{
			Category:    "Config",
			Name:        "XDG_CONFIG_HOME",
			Description: "Base directory searched for monopipe/config.yaml before ~/.config/monopipe and ~/.monopipe.",
		},
		{
			Category:    "Output",
			Name:        "NO_COLOR",
			Description: "Disable ANSI color output (any value).",
		},
		{
			Category:    "Output",
			Name:        "MONOPIPE_OUTPUT",
			Description: "Default -o format for affected, plan and run (table, json, yaml).",
		},
		{
			Category:    "Logging",
			Name:        "MONOPIPE_LOG_LEVEL",
			Description: "Log level (debug, info, warn, error). Debug also logs run journal events.",
		},
		{
			Category:    "Logging",
			Name:        "MONOPIPE_LOG_FORMAT",
			Description: "Log encoding (console, json).",
		},
		{
			Category:    "Run",
			Name:        "MONOPIPE_MAX_PARALLEL",
			Description: "Upper bound on concurrently running tasks for `monopipe run`.",
		},
		{
			Category:    "Run",
			Name:        "MONOPIPE_STRATEGY",
			Description: "Child run strategy for `monopipe run` (depend, detached).",
		},
		{
			Category:    "Run",
			Name:        "MONOPIPE_METRICS_FILE",
			Description: "Write Prometheus textfile metrics for the run to this path.",
		},
		{
			Category:    "Task",
			Internal:    true,
			Name:        TaskComponent,
			Description: "Exported to task commands: the component the task belongs to.",
		},
		{
			Category:    "Task",
			Internal:    true,
			Name:        TaskStage,
			Description: "Exported to task commands: the stage being run (build, test, deploy).",
		},
		{
			Category:    "Task",
			Internal:    true,
			Name:        TaskID,
			Description: "Exported to task commands: the task id (<component>:<stage>).",
		},
	}
}
