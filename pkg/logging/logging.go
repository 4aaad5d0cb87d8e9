package logging

import (
	"fmt"
	"strings"

	"github.com/jensneuse/abstractlogger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New builds a zap backed abstractlogger. The returned zap logger must be synced by the caller.
func New(level, format string) (abstractlogger.Logger, *zap.Logger, error) {
	zapLevel, abstractLevel, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	var config zap.Config
	switch strings.ToLower(format) {
	case FormatJSON:
		config = zap.NewProductionConfig()
	case FormatConsole, "":
		config = zap.NewDevelopmentConfig()
	default:
		return nil, nil, fmt.Errorf("logging: unknown format %q", format)
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	zapLogger, err := config.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("logging: building logger: %w", err)
	}

	return abstractlogger.NewZapLogger(zapLogger, abstractLevel), zapLogger, nil
}

// ParseLevel maps a level name onto its zap and abstractlogger counterparts.
func ParseLevel(level string) (zapcore.Level, abstractlogger.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, abstractlogger.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, abstractlogger.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, abstractlogger.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, abstractlogger.ErrorLevel, nil
	}
	return zapcore.InfoLevel, abstractlogger.InfoLevel, fmt.Errorf("logging: unknown level %q", level)
}
