// Package logger builds the zap logger used across the service. Responses to
// clients stay terse; this logger is where the detailed rejection reasons,
// schema findings and store errors go.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger appropriate for the environment: human-readable
// console output in dev, JSON to stdout everywhere else so collectors can
// pick it up.
func New(env string) (*zap.Logger, error) {
	if env == "dev" || env == "test" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout"}
	return cfg.Build()
}
