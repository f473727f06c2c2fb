package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.Logger so call sites depend on this package rather than
// on zap directly.
type Logger struct {
	*zap.Logger
	config *Config
}

var (
	globalLogger *Logger
	once         sync.Once
)

// NewLogger initializes the process-wide logger. It is designed to be called
// once; subsequent calls return the existing instance.
func NewLogger() *Logger {
	once.Do(func() {
		cfg := DefaultConfig()

		var zapConfig zap.Config
		if cfg.Level == "debug" {
			zapConfig = zap.NewDevelopmentConfig()
			zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			zapConfig = zap.NewProductionConfig()
			zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}
		zapConfig.Level = zap.NewAtomicLevelAt(cfg.ZapLevel())

		if cfg.Format == "console" || cfg.Format == "text" {
			zapConfig.Encoding = "console"
		} else {
			zapConfig.Encoding = "json"
		}

		logger, err := zapConfig.Build(zap.AddCallerSkip(1))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing zap logger: %v. Falling back to basic logger.\n", err)
			logger, _ = zap.NewProduction()
		}

		globalLogger = &Logger{Logger: logger, config: cfg}
		globalLogger.Info("Logger initialized",
			zap.String("level", cfg.Level),
			zap.String("format", cfg.Format))
	})
	return globalLogger
}

// Nop returns a logger that discards all output. Intended for tests.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop(), config: DefaultConfig()}
}

// Named adds a path segment to the logger's name for contextual logging.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name), config: l.config}
}

// With adds structured context to the logger.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...), config: l.config}
}
