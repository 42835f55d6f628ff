package logging

import (
	"go.uber.org/zap"
)

// Leveled adapts a zap sugared logger to the leveled logger interface that
// go-retryablehttp expects (message followed by key/value pairs).
type Leveled struct {
	S *zap.SugaredLogger
}

// NewLeveled wraps the global zap logger, tagging every line with component
func NewLeveled(component string) *Leveled {
	return &Leveled{S: zap.S().With("component", component)}
}

// Error logs at error level
func (l *Leveled) Error(msg string, keysAndValues ...interface{}) {
	l.S.Errorw(msg, keysAndValues...)
}

// Info logs at info level
func (l *Leveled) Info(msg string, keysAndValues ...interface{}) {
	l.S.Infow(msg, keysAndValues...)
}

// Debug logs at debug level
func (l *Leveled) Debug(msg string, keysAndValues ...interface{}) {
	l.S.Debugw(msg, keysAndValues...)
}

// Warn logs at warn level
func (l *Leveled) Warn(msg string, keysAndValues ...interface{}) {
	l.S.Warnw(msg, keysAndValues...)
}
