package observability

import (
	"math/rand"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLoggerWithService constructs a production zap.Logger configured for the service.
// The returned logger should be passed to other components for structured logging.
func InitLoggerWithService(serviceName string) (*zap.Logger, error) {
	return InitLoggerWithLevel(getLogLevel(), serviceName)
}

// InitLoggerWithLevel constructs a zap.Logger at the provided level.
// The returned logger is named with the service name and installed as the global logger.
func InitLoggerWithLevel(level zapcore.Level, serviceName string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)

	// Field names match what the log shipper expects
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.NameKey = "logger"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	logger = logger.Named(serviceName).With(
		zap.String("service", serviceName),
		zap.String("env", Environment()),
	)
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// Environment returns the normalized deployment environment from ENV,
// defaulting to "production".
func Environment() string {
	switch env := strings.ToLower(os.Getenv("ENV")); env {
	case "development", "dev":
		return "development"
	case "staging", "test":
		return env
	default:
		return "production"
	}
}

// getLogLevel honours LOG_LEVEL and otherwise derives a level from ENV.
func getLogLevel() zapcore.Level {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if lvl, err := zapcore.ParseLevel(strings.ToLower(v)); err == nil {
			return lvl
		}
		return zap.InfoLevel
	}
	if Environment() == "development" {
		return zap.DebugLevel
	}
	return zap.InfoLevel
}

// ShouldSample returns true if the log should be sampled based on the given rate.
// rate should be between 0.0 and 1.0 (e.g., 0.1 for 10% sampling).
func ShouldSample(rate float64) bool {
	if rate >= 1.0 {
		return true
	}
	if rate <= 0.0 {
		return false
	}
	return rand.Float64() < rate
}

// GetSamplingRate returns the sampling rate for high-volume success logs.
func GetSamplingRate() float64 {
	switch Environment() {
	case "development":
		return 1.0
	case "staging", "test":
		return 0.5
	default:
		return 0.1
	}
}
