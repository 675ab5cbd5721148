// Package logger provides opinionated logging capabilities for ragrelay
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a *zap.Logger configured by the given options.
// Defaults to an Info-level console logger writing to os.Stdout.
func New(opts ...Option) *zap.Logger {
	c := &config{level: zap.InfoLevel}
	for _, opt := range opts {
		opt(c)
	}

	if len(c.writers) == 0 {
		c.writers = []io.Writer{os.Stdout}
	}

	var zopts []zap.Option
	if c.source {
		zopts = append(zopts, zap.AddCaller())
	}

	return zap.New(newCore(c), zopts...)
}

// NewLogger creates the console logger used by the commands.
func NewLogger(debug bool) *zap.Logger {
	return New(WithDebug(debug), WithSource(true))
}

// Nop returns a logger that discards everything. Useful in tests.
func Nop() *zap.Logger {
	return zap.NewNop()
}

func newCore(c *config) zapcore.Core {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if c.json {
		encoderConfig.MessageKey = "msg"
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	syncers := make([]zapcore.WriteSyncer, 0, len(c.writers))
	for _, writer := range c.writers {
		syncers = append(syncers, zapcore.AddSync(writer))
	}

	return zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), c.level)
}
