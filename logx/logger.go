package logx

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// OutputFormat defines the log output format
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
)

// Logger is a leveled printf-style logger. A Logger and every child created
// with WithPrefix share one output lock.
type Logger struct {
	mu         *sync.Mutex
	level      Level
	out        io.Writer
	prefix     string
	showCaller bool
	colored    bool
	format     OutputFormat
}

// New creates a new logger with default settings
func New() *Logger {
	return &Logger{
		mu:         &sync.Mutex{},
		level:      InfoLevel,
		out:        os.Stdout,
		showCaller: true,
		colored:    true,
		format:     FormatConsole,
	}
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level Level) { l.level = level }

// SetOutput sets the output destination
func (l *Logger) SetOutput(w io.Writer) { l.out = w }

// SetPrefix sets a prefix for all log messages
func (l *Logger) SetPrefix(prefix string) { l.prefix = prefix }

// SetShowCaller enables or disables showing caller information
func (l *Logger) SetShowCaller(show bool) { l.showCaller = show }

// SetColored enables or disables colored output
func (l *Logger) SetColored(colored bool) { l.colored = colored }

// SetFormat sets the output format. JSON output is never colored.
func (l *Logger) SetFormat(format OutputFormat) {
	l.format = format
	if format == FormatJSON {
		l.colored = false
	}
}

// WithPrefix returns a child logger writing to the same destination with an
// extended prefix, e.g. "local" -> "local/ollama".
func (l *Logger) WithPrefix(prefix string) *Logger {
	child := *l
	if l.prefix != "" {
		child.prefix = l.prefix + "/" + prefix
	} else {
		child.prefix = prefix
	}
	return &child
}

// IsLevelEnabled checks if a level is enabled
func (l *Logger) IsLevelEnabled(level Level) bool {
	return level >= l.level && l.level != OffLevel
}

// findCaller returns the first frame outside of this package
func (l *Logger) findCaller() string {
	if !l.showCaller {
		return ""
	}
	for i := 2; i < 15; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		dir := filepath.Base(filepath.Dir(file))
		if dir == "logx" && !strings.HasSuffix(file, "_test.go") {
			continue
		}
		return fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	return ""
}

func (l *Logger) log(level Level, msg string, args ...any) {
	if !l.IsLevelEnabled(level) {
		return
	}

	message := msg
	if len(args) > 0 {
		message = fmt.Sprintf(msg, args...)
	}
	caller := l.findCaller()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == FormatJSON {
		entry := map[string]any{
			"timestamp": time.Now().Format(time.RFC3339),
			"level":     level.String(),
			"message":   message,
		}
		if l.prefix != "" {
			entry["prefix"] = l.prefix
		}
		if caller != "" {
			entry["caller"] = caller
		}
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(l.out, string(data))
		}
		return
	}

	levelStr := level.String()
	if l.colored {
		levelStr = level.color() + levelStr + "\033[0m"
	}

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(time.Now().Format("2006-01-02 15:04:05"))
	b.WriteString("] ")
	if l.prefix != "" {
		b.WriteString(l.prefix)
		b.WriteString(" ")
	}
	b.WriteString("[")
	b.WriteString(levelStr)
	b.WriteString("]")
	if caller != "" {
		b.WriteString(" ")
		b.WriteString(caller)
	}
	b.WriteString(": ")
	b.WriteString(message)
	fmt.Fprintln(l.out, b.String())
}

// Trace logs a message at trace level
func (l *Logger) Trace(msg string, args ...any) { l.log(TraceLevel, msg, args...) }

// Debug logs a message at debug level
func (l *Logger) Debug(msg string, args ...any) { l.log(DebugLevel, msg, args...) }

// Info logs a message at info level
func (l *Logger) Info(msg string, args ...any) { l.log(InfoLevel, msg, args...) }

// Warn logs a message at warn level
func (l *Logger) Warn(msg string, args ...any) { l.log(WarnLevel, msg, args...) }

// Error logs a message at error level
func (l *Logger) Error(msg string, args ...any) { l.log(ErrorLevel, msg, args...) }

// Fatal logs a message at error level and exits
func (l *Logger) Fatal(msg string, args ...any) {
	l.log(ErrorLevel, msg, args...)
	os.Exit(1)
}
