package logger

import "os"

type multiLogger []Logger

var _ Logger = multiLogger(nil)

// NewMultiLogger returns a Logger writing every entry to each of loggers.
func NewMultiLogger(loggers ...Logger) Logger {
	return multiLogger(loggers)
}

func (m multiLogger) each(fn func(Logger) Logger) multiLogger {
	out := make(multiLogger, len(m))
	for i, l := range m {
		out[i] = fn(l)
	}
	return out
}

func (m multiLogger) With(metadata map[string]interface{}) Logger {
	return m.each(func(l Logger) Logger { return l.With(metadata) })
}

func (m multiLogger) WithPrefix(prefix string) Logger {
	return m.each(func(l Logger) Logger { return l.WithPrefix(prefix) })
}

func (m multiLogger) Trace(msg string, args ...interface{}) {
	for _, l := range m {
		l.Trace(msg, args...)
	}
}

func (m multiLogger) Debug(msg string, args ...interface{}) {
	for _, l := range m {
		l.Debug(msg, args...)
	}
}

func (m multiLogger) Info(msg string, args ...interface{}) {
	for _, l := range m {
		l.Info(msg, args...)
	}
}

func (m multiLogger) Warn(msg string, args ...interface{}) {
	for _, l := range m {
		l.Warn(msg, args...)
	}
}

func (m multiLogger) Error(msg string, args ...interface{}) {
	for _, l := range m {
		l.Error(msg, args...)
	}
}

// Fatal logs to every logger at error level before exiting.
func (m multiLogger) Fatal(msg string, args ...interface{}) {
	for _, l := range m {
		l.Error(msg, args...)
	}
	os.Exit(1)
}

func (m multiLogger) IsLevelEnabled(level LogLevel) bool {
	for _, l := range m {
		if l.IsLevelEnabled(level) {
			return true
		}
	}
	return false
}
