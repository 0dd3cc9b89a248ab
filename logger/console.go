package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

const isWindows = runtime.GOOS == "windows"

var noColor = os.Getenv("TERM") == "dumb" ||
	(!isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()))

func color(val string) string {
	if isWindows || noColor {
		return ""
	}
	return val
}

const (
	reset       = "\033[0m"
	red         = "\033[31m"
	green       = "\033[32m"
	magenta     = "\033[35m"
	gray        = "\033[1;90m"
	blueBold    = "\033[34;1m"
	magentaBold = "\033[35;1m"
	redBold     = "\033[31;1m"
	yellowBold  = "\033[33;1m"
	whiteBold   = "\033[37;1m"
	cyanBold    = "\033[36;1m"
)

var levelColors = map[LogLevel][2]string{
	LevelTrace: {cyanBold, gray},
	LevelDebug: {blueBold, green},
	LevelInfo:  {yellowBold, whiteBold},
	LevelWarn:  {magentaBold, magenta},
	LevelError: {redBold, red},
}

type consoleLogger struct {
	prefixes     []string
	metadata     map[string]any
	out          Sink
	sink         Sink
	logLevel     LogLevel
	sinkLogLevel LogLevel
}

var _ SinkLogger = (*consoleLogger)(nil)

// NewConsole returns a Logger that writes human-readable output to stderr.
// The level defaults to GetLevelFromEnv when none is given.
func NewConsole(levels ...LogLevel) SinkLogger {
	level := GetLevelFromEnv()
	if len(levels) > 0 {
		level = levels[0]
	}
	return &consoleLogger{out: os.Stderr, logLevel: level, sinkLogLevel: LevelNone}
}

func (c *consoleLogger) clone() *consoleLogger {
	metadata := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		metadata[k] = v
	}
	return &consoleLogger{
		prefixes:     slices.Clone(c.prefixes),
		metadata:     metadata,
		out:          c.out,
		sink:         c.sink,
		logLevel:     c.logLevel,
		sinkLogLevel: c.sinkLogLevel,
	}
}

func (c *consoleLogger) With(metadata map[string]any) Logger {
	clone := c.clone()
	for k, v := range metadata {
		clone.metadata[k] = v
	}
	return clone
}

func (c *consoleLogger) WithPrefix(prefix string) Logger {
	clone := c.clone()
	if !slices.Contains(clone.prefixes, prefix) {
		clone.prefixes = append(clone.prefixes, prefix)
	}
	return clone
}

func (c *consoleLogger) WithSink(sink Sink, level LogLevel) Logger {
	clone := c.clone()
	clone.sink = sink
	clone.sinkLogLevel = level
	return clone
}

func (c *consoleLogger) log(level LogLevel, msg string, args ...any) {
	if level < c.logLevel && (c.sink == nil || level < c.sinkLogLevel) {
		return
	}
	formatted := fmt.Sprintf(msg, args...)
	var prefix string
	if len(c.prefixes) > 0 {
		prefix = strings.Join(c.prefixes, " ") + " "
	}
	var suffix string
	if len(c.metadata) > 0 {
		buf, _ := json.Marshal(c.metadata)
		suffix = " " + string(buf)
	}
	name := levelString(level)
	pad := strings.Repeat(" ", 5-len(name))
	if level >= c.logLevel {
		colors := levelColors[level]
		fmt.Fprintf(c.out, "%s[%s]%s%s %s%s%s%s%s%s%s\n",
			color(colors[0]), name, color(reset), pad,
			prefix,
			color(colors[1]), formatted, color(reset),
			color(gray), suffix, color(reset))
	}
	if c.sink != nil && level >= c.sinkLogLevel {
		ts := time.Now().Format(time.RFC3339Nano)
		c.sink.Write([]byte(ts + " [" + name + "]" + pad + " " + prefix + formatted + suffix + "\n"))
	}
}

func (c *consoleLogger) Trace(msg string, args ...any) { c.log(LevelTrace, msg, args...) }
func (c *consoleLogger) Debug(msg string, args ...any) { c.log(LevelDebug, msg, args...) }
func (c *consoleLogger) Info(msg string, args ...any)  { c.log(LevelInfo, msg, args...) }
func (c *consoleLogger) Warn(msg string, args ...any)  { c.log(LevelWarn, msg, args...) }
func (c *consoleLogger) Error(msg string, args ...any) { c.log(LevelError, msg, args...) }
