// Package observability provides structured logging and tracing for zircon.
//
// Logging is zap throughout. Every component accepts a *zap.Logger and treats
// nil as a no-op logger, so library users who do not care about logs pay
// nothing.
package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// LoggerConfig selects the level and encoding of the process logger.
type LoggerConfig struct {
	// Level is one of debug, info, warn, error.
	Level string

	// Format is "json" (production) or "console" (development).
	Format string

	// Debug forces debug level regardless of Level.
	Debug bool
}

// NewLogger builds a zap logger from cfg.
func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	var zc zap.Config
	switch strings.ToLower(cfg.Format) {
	case "", FormatJSON:
		zc = zap.NewProductionConfig()
	case FormatConsole:
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("observability: unknown log format %q", cfg.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	return zc.Build()
}

// ParseLevel parses a level name. An empty name means info.
func ParseLevel(name string) (zapcore.Level, error) {
	if name == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("observability: unknown log level %q", name)
	}
	return level, nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
