// Package logger wraps zap so every binary configures logging the same way.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Logger holds the process-wide structured logger.
type Logger struct {
	// Log is a no-op logger until Init succeeds.
	Log *zap.Logger
}

// New returns a Logger backed by zap.NewNop.
func New() *Logger {
	return &Logger{Log: zap.NewNop()}
}

// Init replaces the no-op logger with a production zap logger at the given
// level ("debug", "info", "warn", "error"). Output goes to stderr so it never
// interleaves with interactive shell output on stdout.
func (l *Logger) Init(level string) error {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.OutputPaths = []string{"stderr"}
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()

	zl, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	l.Log = zl
	return nil
}
