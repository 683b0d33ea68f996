// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rlog is the round engine's logging seam. It mirrors the shape of
// github.com/luxfi/log.Logger (With/Info/Warn/Error backed by zap fields)
// so every component takes a Logger at construction instead of reaching for
// a package-level global.
package rlog

import "go.uber.org/zap"

// Logger is the structured logging interface every round-engine component
// depends on.
type Logger interface {
	With(fields ...zap.Field) Logger
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

// zapLogger adapts *zap.Logger to Logger.
type zapLogger struct {
	z *zap.Logger
}

// New wraps a *zap.Logger as a Logger.
func New(z *zap.Logger) Logger {
	return &zapLogger{z: z}
}

// NewProduction returns a Logger backed by zap's production config, falling
// back to a no-op logger if construction fails (it practically never does).
func NewProduction() Logger {
	z, err := zap.NewProduction()
	if err != nil {
		return NewNoOp()
	}
	return New(z)
}

func (l *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{z: l.z.With(fields...)}
}

func (l *zapLogger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...zap.Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }

// noOp is a Logger that discards everything, used in tests.
type noOp struct{}

// NewNoOp returns a Logger that discards all output.
func NewNoOp() Logger { return noOp{} }

func (noOp) With(...zap.Field) Logger      { return noOp{} }
func (noOp) Debug(string, ...zap.Field)    {}
func (noOp) Info(string, ...zap.Field)     {}
func (noOp) Warn(string, ...zap.Field)     {}
func (noOp) Error(string, ...zap.Field)    {}
