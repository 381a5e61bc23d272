package rdt

import (
	"context"
	"log/slog"
)

// logger is a thin wrapper around *slog.Logger that tolerates a nil
// logger: session logic logs unconditionally and the wrapper no-ops when
// nothing is configured, rather than every call site checking for nil.
type logger struct {
	log *slog.Logger
}

func (l logger) enabled(lvl slog.Level) bool {
	return l.log != nil && l.log.Handler().Enabled(context.Background(), lvl)
}

func (l logger) debug(msg string, args ...any) {
	if l.log != nil {
		l.log.Debug(msg, args...)
	}
}

func (l logger) info(msg string, args ...any) {
	if l.log != nil {
		l.log.Info(msg, args...)
	}
}

func (l logger) warn(msg string, args ...any) {
	if l.log != nil {
		l.log.Warn(msg, args...)
	}
}

func (l logger) errlog(msg string, args ...any) {
	if l.log != nil {
		l.log.Error(msg, args...)
	}
}
