package logger

import (
	"sync"
)

type TestLogEntry struct {
	Severity  string
	Message   string
	Arguments []interface{}
	Metadata  map[string]interface{}
}

// TestLogger records every entry in memory. Loggers derived through With or
// WithPrefix share the same entry list, so a component's tagged logger can be
// asserted on through the root.
type TestLogger struct {
	metadata map[string]interface{}
	entries  *[]TestLogEntry
	mu       *sync.Mutex
}

var _ Logger = (*TestLogger)(nil)

func (c *TestLogger) WithPrefix(prefix string) Logger {
	return c
}

func (c *TestLogger) With(metadata map[string]interface{}) Logger {
	kv := make(map[string]interface{}, len(c.metadata)+len(metadata))
	for k, v := range c.metadata {
		kv[k] = v
	}
	for k, v := range metadata {
		kv[k] = v
	}
	return &TestLogger{metadata: kv, entries: c.entries, mu: c.mu}
}

func (c *TestLogger) log(level string, msg string, args ...interface{}) {
	c.mu.Lock()
	*c.entries = append(*c.entries, TestLogEntry{level, msg, args, c.metadata})
	c.mu.Unlock()
}

// Logs returns a snapshot of the recorded entries.
func (c *TestLogger) Logs() []TestLogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TestLogEntry, len(*c.entries))
	copy(out, *c.entries)
	return out
}

// Count returns how many entries were recorded at severity.
func (c *TestLogger) Count(severity string) int {
	var n int
	for _, e := range c.Logs() {
		if e.Severity == severity {
			n++
		}
	}
	return n
}

func (c *TestLogger) IsLevelEnabled(level LogLevel) bool { return true }

func (c *TestLogger) Trace(msg string, args ...interface{}) { c.log("TRACE", msg, args...) }
func (c *TestLogger) Debug(msg string, args ...interface{}) { c.log("DEBUG", msg, args...) }
func (c *TestLogger) Info(msg string, args ...interface{})  { c.log("INFO", msg, args...) }
func (c *TestLogger) Warn(msg string, args ...interface{})  { c.log("WARNING", msg, args...) }
func (c *TestLogger) Error(msg string, args ...interface{}) { c.log("ERROR", msg, args...) }

// Fatal records the entry but does not exit, so tests can observe it.
func (c *TestLogger) Fatal(msg string, args ...interface{}) { c.log("FATAL", msg, args...) }

// NewTestLogger returns a new Logger instance useful for testing
func NewTestLogger() *TestLogger {
	entries := make([]TestLogEntry, 0)
	return &TestLogger{entries: &entries, mu: &sync.Mutex{}}
}
