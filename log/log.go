// Package log provides the structured logger used throughout the consensus core.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging surface every package in this module depends on.
// It is intentionally small: structured fields only, no printf-style
// formatting, so call sites stay grep-able and log lines stay machine
// parseable.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)

	// With returns a Logger that always includes the given fields.
	With(fields ...zap.Field) Logger
}

type zapLogger struct {
	l *zap.Logger
}

// New returns a production Logger writing JSON to stderr at the given level.
func New(level zapcore.Level) Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		// Config construction only fails on encoder/sink misconfiguration,
		// which NewProductionConfig never produces; fall back rather than
		// propagate an error from a logging constructor.
		l = zap.NewNop()
	}
	return &zapLogger{l: l}
}

// NewNop returns a Logger that discards everything, for tests and
// components that have not been wired to a real sink.
func NewNop() Logger {
	return &zapLogger{l: zap.NewNop()}
}

func (z *zapLogger) Debug(msg string, fields ...zap.Field) { z.l.Debug(msg, fields...) }
func (z *zapLogger) Info(msg string, fields ...zap.Field)  { z.l.Info(msg, fields...) }
func (z *zapLogger) Warn(msg string, fields ...zap.Field)  { z.l.Warn(msg, fields...) }
func (z *zapLogger) Error(msg string, fields ...zap.Field) { z.l.Error(msg, fields...) }

func (z *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{l: z.l.With(fields...)}
}

// NewDevelopment returns a human-readable console logger for local runs.
func NewDevelopment() Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	l, err := cfg.Build()
	if err != nil {
		return NewNop()
	}
	return &zapLogger{l: l}
}
