package logger

import "sync"

// TestLogEntry is one captured log call.
type TestLogEntry struct {
	Severity  string
	Message   string
	Arguments []any
}

type testLogState struct {
	mutex sync.Mutex
	logs  []TestLogEntry
}

// TestLogger captures log calls for assertions in tests. Loggers derived via
// With and WithPrefix share the same capture buffer. Safe for concurrent use.
type TestLogger struct {
	metadata map[string]any
	state    *testLogState
}

var _ Logger = (*TestLogger)(nil)

// NewTestLogger returns a TestLogger ready for use.
func NewTestLogger() *TestLogger {
	return &TestLogger{state: &testLogState{}}
}

// Logs returns a copy of everything logged so far, including through loggers
// derived from this one.
func (c *TestLogger) Logs() []TestLogEntry {
	c.state.mutex.Lock()
	defer c.state.mutex.Unlock()
	out := make([]TestLogEntry, len(c.state.logs))
	copy(out, c.state.logs)
	return out
}

// Messages returns just the captured message strings (unformatted).
func (c *TestLogger) Messages() []string {
	entries := c.Logs()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func (c *TestLogger) With(metadata map[string]any) Logger {
	kv := make(map[string]any, len(c.metadata)+len(metadata))
	for k, v := range c.metadata {
		kv[k] = v
	}
	for k, v := range metadata {
		kv[k] = v
	}
	return &TestLogger{metadata: kv, state: c.state}
}

func (c *TestLogger) WithPrefix(string) Logger {
	return &TestLogger{metadata: c.metadata, state: c.state}
}

func (c *TestLogger) log(severity string, msg string, args ...any) {
	c.state.mutex.Lock()
	c.state.logs = append(c.state.logs, TestLogEntry{severity, msg, args})
	c.state.mutex.Unlock()
}

func (c *TestLogger) Trace(msg string, args ...any) { c.log("TRACE", msg, args...) }
func (c *TestLogger) Debug(msg string, args ...any) { c.log("DEBUG", msg, args...) }
func (c *TestLogger) Info(msg string, args ...any)  { c.log("INFO", msg, args...) }
func (c *TestLogger) Warn(msg string, args ...any)  { c.log("WARN", msg, args...) }
func (c *TestLogger) Error(msg string, args ...any) { c.log("ERROR", msg, args...) }
