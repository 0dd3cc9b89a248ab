package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type jsonLogger struct {
	prefixes []string
	metadata map[string]any
	out      io.Writer
	mutex    *sync.Mutex
	logLevel LogLevel
}

var _ Logger = (*jsonLogger)(nil)

// NewJSON returns a Logger that emits one JSON object per line, suitable for
// log aggregation. Output goes to stderr unless out is given.
func NewJSON(level LogLevel, out ...io.Writer) Logger {
	var w io.Writer = os.Stderr
	if len(out) > 0 {
		w = out[0]
	}
	return &jsonLogger{out: w, mutex: &sync.Mutex{}, logLevel: level}
}

func (j *jsonLogger) clone() *jsonLogger {
	metadata := make(map[string]any, len(j.metadata))
	for k, v := range j.metadata {
		metadata[k] = v
	}
	prefixes := make([]string, len(j.prefixes))
	copy(prefixes, j.prefixes)
	return &jsonLogger{prefixes: prefixes, metadata: metadata, out: j.out, mutex: j.mutex, logLevel: j.logLevel}
}

func (j *jsonLogger) With(metadata map[string]any) Logger {
	clone := j.clone()
	for k, v := range metadata {
		clone.metadata[k] = v
	}
	return clone
}

func (j *jsonLogger) WithPrefix(prefix string) Logger {
	clone := j.clone()
	clone.prefixes = append(clone.prefixes, prefix)
	return clone
}

func (j *jsonLogger) log(level LogLevel, msg string, args ...any) {
	if level < j.logLevel {
		return
	}
	entry := make(map[string]any, len(j.metadata)+3)
	for k, v := range j.metadata {
		entry[k] = v
	}
	message := fmt.Sprintf(msg, args...)
	if len(j.prefixes) > 0 {
		message = strings.Join(j.prefixes, " ") + " " + message
	}
	entry["ts"] = time.Now().Format(time.RFC3339Nano)
	entry["level"] = strings.ToLower(levelString(level))
	entry["msg"] = message
	buf, err := json.Marshal(entry)
	if err != nil {
		return
	}
	j.mutex.Lock()
	j.out.Write(append(buf, '\n'))
	j.mutex.Unlock()
}

func (j *jsonLogger) Trace(msg string, args ...any) { j.log(LevelTrace, msg, args...) }
func (j *jsonLogger) Debug(msg string, args ...any) { j.log(LevelDebug, msg, args...) }
func (j *jsonLogger) Info(msg string, args ...any)  { j.log(LevelInfo, msg, args...) }
func (j *jsonLogger) Warn(msg string, args ...any)  { j.log(LevelWarn, msg, args...) }
func (j *jsonLogger) Error(msg string, args ...any) { j.log(LevelError, msg, args...) }
