package logger

import (
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Config holds configuration for the logger, read straight from the
// environment so logging is available before the main config layer loads.
type Config struct {
	Level  string
	Format string
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// DefaultConfig reads logger settings from LOG_LEVEL and LOG_FORMAT.
func DefaultConfig() *Config {
	return &Config{
		Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}
}

// ZapLevel converts the configured level string to a zapcore.Level.
func (c *Config) ZapLevel() zapcore.Level {
	switch c.Level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
