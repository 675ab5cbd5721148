package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Multi creates a *zap.Logger that writes every entry to all provided
// loggers' cores. Used by serve to log pretty output to stdout and JSON to a
// log file at the same time.
func Multi(loggers ...*zap.Logger) *zap.Logger {
	cores := make([]zapcore.Core, len(loggers))
	for i, l := range loggers {
		cores[i] = l.Core()
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}
