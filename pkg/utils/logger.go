package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevels lists the accepted verbosity names, most verbose first.
var LogLevels = []string{"DEBUG", "INFO", "WARNING", "ERROR"}

// ParseLevel maps a verbosity name (DEBUG, INFO, WARNING/WARN, ERROR; case-insensitive) to a zap level.
// An empty name is INFO.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return zapcore.DebugLevel, nil
	case "", "INFO":
		return zapcore.InfoLevel, nil
	case "WARNING", "WARN":
		return zapcore.WarnLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown logging level %q (want one of %s)", name, strings.Join(LogLevels, ", "))
	}
}

// NewLogger returns a zap logger. When debug is true, uses development config
// (human-readable console output); otherwise uses production config (JSON).
// level overrides the config's default level.
func NewLogger(debug bool, level string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
