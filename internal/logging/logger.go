// Package logging provides zap logger helpers.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the encoder and level of the logger.
type Options struct {
	Development bool
	// Verbose lowers the level to debug unless Level is set.
	Verbose bool
	// Level is a level name such as "debug" or "WARNING".
	Level string
}

// New builds a zap.Logger configured for development or production.
func New(opts Options) (*zap.Logger, error) {
	level, err := resolveLevel(opts)
	if err != nil {
		return nil, err
	}
	if opts.Development {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = false
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}

// ParseLevel accepts zap level names plus the common "warning" and
// "critical" spellings, case-insensitively.
func ParseLevel(name string) (zapcore.Level, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "warning":
		return zapcore.WarnLevel, nil
	case "critical":
		return zapcore.FatalLevel, nil
	default:
		level, err := zapcore.ParseLevel(n)
		if err != nil {
			return zapcore.InfoLevel, fmt.Errorf("parse log level %q: %w", name, err)
		}
		return level, nil
	}
}

func resolveLevel(opts Options) (zapcore.Level, error) {
	if opts.Level != "" {
		return ParseLevel(opts.Level)
	}
	if opts.Verbose {
		return zapcore.DebugLevel, nil
	}
	return zapcore.InfoLevel, nil
}
