// Package logger builds the structured zap logger shared by every service
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log format values
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config represents logger configuration
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Format      string // "json", "console"
	ServiceName string
	Version     string
	Environment string // "dev", "staging", "prod"
}

// ProductionConfig returns production-ready defaults
func ProductionConfig() Config {
	return Config{
		Level:       "info",
		Format:      FormatJSON,
		ServiceName: "cascade-rgs",
		Version:     "1.0.0",
		Environment: "prod",
	}
}

// DevelopmentConfig returns development-friendly defaults
func DevelopmentConfig() Config {
	return Config{
		Level:       "debug",
		Format:      FormatConsole,
		ServiceName: "cascade-rgs",
		Version:     "dev",
		Environment: "dev",
	}
}

// LogLevel converts the configured level to a zap level, defaulting to info
func (c Config) LogLevel() zapcore.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// IsJSON returns true if format is JSON
func (c Config) IsJSON() bool {
	return strings.ToLower(c.Format) != FormatConsole
}

// New builds a logger writing to stderr with the service fields attached
func New(c Config) (*zap.Logger, error) {
	var zc zap.Config
	if c.IsJSON() {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "time"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(c.LogLevel())
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return log.With(
		zap.String("service", c.ServiceName),
		zap.String("version", c.Version),
		zap.String("environment", c.Environment),
	), nil
}
