package observability

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every log line.
const ServiceName = "bike-sharing-dashboard"

// NewLogger builds the process logger. LOG_LEVEL selects the level and
// LOG_FORMAT=console switches to human-readable output for local runs.
func NewLogger() (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_FORMAT")), "console") {
		config.Encoding = "console"
	}
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = parseLogLevel(os.Getenv("LOG_LEVEL"))

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", ServiceName)), nil
}

func parseLogLevel(s string) zap.AtomicLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "WARN":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "ERROR":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}

// FlushTelemetry flushes buffered logs before process exit. Prometheus is
// pull-based, so there is nothing else to push.
func FlushTelemetry(ctx context.Context, logger *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if logger != nil {
		if err := logger.Sync(); err != nil {
			return fmt.Errorf("flush logs: %w", err)
		}
	}
	return nil
}
