package logger

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// WatermillAdapter routes watermill logs into zap.
// Watermill's info level is chatty, so it is logged at debug.
type WatermillAdapter struct {
	l *zap.Logger
}

// NewWatermillAdapter wraps l. A nil logger discards everything.
func NewWatermillAdapter(l *zap.Logger) *WatermillAdapter {
	if l == nil {
		l = zap.NewNop()
	}
	return &WatermillAdapter{l: l.Named("watermill")}
}

// Error implements watermill.LoggerAdapter.
func (a *WatermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.l.Error(msg, append(toZap(fields), zap.Error(err))...)
}

// Info implements watermill.LoggerAdapter.
func (a *WatermillAdapter) Info(msg string, fields watermill.LogFields) {
	a.l.Debug(msg, toZap(fields)...)
}

// Debug implements watermill.LoggerAdapter.
func (a *WatermillAdapter) Debug(msg string, fields watermill.LogFields) {
	a.l.Debug(msg, toZap(fields)...)
}

// Trace implements watermill.LoggerAdapter.
func (a *WatermillAdapter) Trace(msg string, fields watermill.LogFields) {
	if ce := a.l.Check(zap.DebugLevel-1, msg); ce != nil {
		ce.Write(toZap(fields)...)
	}
}

// With implements watermill.LoggerAdapter.
func (a *WatermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillAdapter{l: a.l.With(toZap(fields)...)}
}

func toZap(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
