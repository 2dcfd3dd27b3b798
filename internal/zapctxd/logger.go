// Package zapctxd implements contextualized logger with zap.
package zapctxd

import (
	"context"

	"github.com/bool64/ctxd"
	"github.com/bool64/swcache"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ ctxd.Logger = &Logger{}

// Logger adapts zap.SugaredLogger to ctxd.Logger.
type Logger struct {
	s *zap.SugaredLogger
}

// New creates a logger that writes JSON lines at a given level to stderr.
func New(level string) (*Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.Set(level); err != nil {
			return nil, err
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return Wrap(zl), nil
}

// Wrap adapts zap logger.
func Wrap(zl *zap.Logger) *Logger {
	return &Logger{s: zl.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// fields appends context fields and id of requesting page if context has one.
func fields(ctx context.Context, keysAndValues []interface{}) []interface{} {
	keysAndValues = append(keysAndValues, ctxd.Fields(ctx)...)

	if id := swcache.ClientID(ctx); id != "" {
		return append(keysAndValues, "client", id)
	}

	return keysAndValues
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.s.Sync()
}

// Debug logs a message.
func (l *Logger) Debug(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, fields(ctx, keysAndValues)...)
}

// Info logs a message.
func (l *Logger) Info(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, fields(ctx, keysAndValues)...)
}

// Important logs a message at info level.
func (l *Logger) Important(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, fields(ctx, keysAndValues)...)
}

// Warn logs a message.
func (l *Logger) Warn(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.s.Warnw(msg, fields(ctx, keysAndValues)...)
}

// Error logs a message.
func (l *Logger) Error(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, fields(ctx, keysAndValues)...)
}
