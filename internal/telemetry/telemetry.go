// Package telemetry builds the process-wide zap logger from the
// TORMENTA_LOG environment variable, the collaborator spec.md §6 calls
// out as external to the core (an "RUST_LOG-style verbosity selector").
package telemetry

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init builds and installs the global zap logger according to
// TORMENTA_LOG ("debug", "info", "warn", "error"; unset or unrecognized
// defaults to "info"), then returns a sugared handle for immediate use.
func Init() *zap.SugaredLogger {
	level := parseLevel(os.Getenv("TORMENTA_LOG"))

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.TimeKey = ""

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)

	return logger.Sugar()
}

func parseLevel(raw string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug", "trace":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
