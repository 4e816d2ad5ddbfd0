package util

import (
	"context"
	"sync"
)

var (
	globalLogger LoggerInterface
	globalMu     sync.RWMutex
)

// InitLogger builds the process logger. Calling it again replaces the
// previous logger.
func InitLogger(opts LoggerOptions) error {
	logger, err := NewLogger(opts)
	if err != nil {
		return err
	}
	SetLogger(logger)
	return nil
}

// SetLogger installs l as the process logger; nil disables logging
func SetLogger(l LoggerInterface) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// CloseLogger flushes and closes the process logger outputs
func CloseLogger() {
	globalMu.Lock()
	defer globalMu.Unlock()
	if closer, ok := globalLogger.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	globalLogger = nil
}

func current() LoggerInterface {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Log returns the process logger scoped to ctx's run, or a no-op logger
func Log(ctx context.Context) LoggerInterface {
	l := current()
	if l == nil {
		return nopLogger{}
	}
	return l.WithContext(ctx)
}

func LogInfo(msg string, fields ...Field) {
	if l := current(); l != nil {
		l.Info(msg, fields...)
	}
}

func LogInfof(format string, args ...interface{}) {
	if l := current(); l != nil {
		l.Infof(format, args...)
	}
}

func LogDebug(msg string, fields ...Field) {
	if l := current(); l != nil {
		l.Debug(msg, fields...)
	}
}

func LogDebugf(format string, args ...interface{}) {
	if l := current(); l != nil {
		l.Debugf(format, args...)
	}
}

func LogWarn(msg string, fields ...Field) {
	if l := current(); l != nil {
		l.Warn(msg, fields...)
	}
}

func LogWarnf(format string, args ...interface{}) {
	if l := current(); l != nil {
		l.Warnf(format, args...)
	}
}

func LogError(msg string, fields ...Field) {
	if l := current(); l != nil {
		l.Error(msg, fields...)
	}
}

func LogErrorf(format string, args ...interface{}) {
	if l := current(); l != nil {
		l.Errorf(format, args...)
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...Field)                        {}
func (nopLogger) Debugf(string, ...interface{})                 {}
func (nopLogger) Info(string, ...Field)                         {}
func (nopLogger) Infof(string, ...interface{})                  {}
func (nopLogger) Warn(string, ...Field)                         {}
func (nopLogger) Warnf(string, ...interface{})                  {}
func (nopLogger) Error(string, ...Field)                        {}
func (nopLogger) Errorf(string, ...interface{})                 {}
func (n nopLogger) With(...Field) LoggerInterface               { return n }
func (n nopLogger) WithContext(context.Context) LoggerInterface { return n }
