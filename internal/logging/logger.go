// File: internal/logging/logger.go
// Brief: zap-backed logr construction for the CLI.

package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects level, encoding and destination.
type Options struct {
	Level  string
	Format string // console|json
	Out    io.Writer
}

// New returns a logr.Logger backed by zap. Debug level also turns on caller
// annotations. Output defaults to stderr so stdout stays reserved for reports.
func New(opts Options) (logr.Logger, error) {
	zapLevel, err := ParseLevel(opts.Level)
	if err != nil {
		return logr.Logger{}, err
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "console", "text":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return logr.Logger{}, fmt.Errorf("unknown log format %q (expected console or json)", opts.Format)
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	atomic := zap.NewAtomicLevelAt(zapLevel)
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(out)), atomic)
	zopts := []zap.Option{}
	if zapLevel == zapcore.DebugLevel {
		zopts = append(zopts, zap.AddCaller())
	}
	return zapr.NewLogger(zap.New(core, zopts...)), nil
}

// ParseLevel maps the CLI level names onto zap levels.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (expected debug, info, warn, or error)", level)
	}
}
