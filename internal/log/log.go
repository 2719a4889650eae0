package log

import (
	"io"
	"os"
	"sync"

	"github.com/paularlott/logger"
	logzerolog "github.com/paularlott/logger/zerolog"
)

var (
	mu            sync.RWMutex
	defaultLogger = newLogger(os.Stderr, "info", "console")
)

// Configure sets the global log level and output format.
// Level is one of trace, debug, info, warn, error. Format is console or json.
func Configure(level, format string) {
	SetOutput(os.Stderr, level, format)
}

// SetOutput is Configure with an explicit writer
func SetOutput(w io.Writer, level, format string) {
	SetLogger(newLogger(w, level, format))
}

// SetLogger replaces the global logger
func SetLogger(l logger.Logger) {
	if l == nil {
		l = logger.NewNullLogger()
	}
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}

// GetLogger returns the global logger, for libraries that accept one
func GetLogger() logger.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

func newLogger(w io.Writer, level, format string) logger.Logger {
	if format != "json" {
		format = "console"
	}
	return logzerolog.New(logzerolog.Config{
		Level:  level,
		Format: format,
		Writer: w,
	})
}

// Trace logs at trace level with alternating key/value pairs.
func Trace(msg string, keysAndValues ...any) {
	GetLogger().Trace(msg, fields(keysAndValues)...)
}

// Debug logs at debug level with alternating key/value pairs.
func Debug(msg string, keysAndValues ...any) {
	GetLogger().Debug(msg, fields(keysAndValues)...)
}

// Info logs at info level with alternating key/value pairs.
func Info(msg string, keysAndValues ...any) {
	GetLogger().Info(msg, fields(keysAndValues)...)
}

// Warn logs at warn level with alternating key/value pairs.
func Warn(msg string, keysAndValues ...any) {
	GetLogger().Warn(msg, fields(keysAndValues)...)
}

// Error logs at error level with alternating key/value pairs.
func Error(msg string, keysAndValues ...any) {
	GetLogger().Error(msg, fields(keysAndValues)...)
}

// With returns the global logger with a field attached
func With(key string, value any) logger.Logger {
	return GetLogger().With(key, value)
}

// fields pads a dangling key and renders errors as their message, since
// JSON encoding drops the text of most error values.
func fields(keysAndValues []any) []any {
	out := make([]any, 0, len(keysAndValues)+1)
	out = append(out, keysAndValues...)
	if len(out)%2 != 0 {
		out = append(out, "(MISSING)")
	}
	for i := 1; i < len(out); i += 2 {
		if err, ok := out[i].(error); ok && err != nil {
			out[i] = err.Error()
		}
	}
	return out
}
