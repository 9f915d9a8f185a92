package log

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// Only the first stack line is parsed, "goroutine 123 [running]:" fits easily.
	stackBufSize = 32
	// Shorter traces cannot contain a goroutine id.
	minStackTraceLen = 12
	// len("goroutine ").
	goroutinePrefixLen = 10

	unknownGoroutine = "unknown"
)

var (
	Logger    zerolog.Logger
	stackPool = sync.Pool{
		New: func() interface{} {
			return make([]byte, stackBufSize)
		},
	}
)

// goroutineID extracts the current goroutine id from a short stack dump.
func goroutineID() string {
	buf, ok := stackPool.Get().([]byte)
	if !ok {
		return unknownGoroutine
	}
	defer stackPool.Put(buf) //nolint:staticcheck // buf is a slice, this is the correct usage

	n := runtime.Stack(buf, false)
	if n < minStackTraceLen || goroutinePrefixLen >= n {
		return unknownGoroutine
	}

	end := goroutinePrefixLen
	for end < n && buf[end] >= '0' && buf[end] <= '9' {
		end++
	}
	if end == goroutinePrefixLen {
		return unknownGoroutine
	}
	return string(buf[goroutinePrefixLen:end])
}

func init() {
	Logger = New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}, zerolog.InfoLevel)

	log.Logger = Logger
}

// New builds a logger writing to out that tags every event with the goroutine id.
func New(out io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger().
		Hook(zerolog.HookFunc(func(e *zerolog.Event, _ zerolog.Level, _ string) {
			e.Str("goid", goroutineID())
		}))
}

// Info logs an info message with goroutine ID.
func Info() *zerolog.Event {
	return Logger.Info()
}

// Error logs an error message with goroutine ID.
func Error() *zerolog.Event {
	return Logger.Error()
}

// Warn logs a warning message with goroutine ID.
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Debug logs a debug message with goroutine ID.
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Fatal logs a fatal message with goroutine ID and exits.
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}

// SetDebugMode switches the logger to debug level.
func SetDebugMode() {
	Logger = Logger.Level(zerolog.DebugLevel)
	log.Logger = Logger
}

// SetLevel switches the logger to the named level ("debug", "info", "warn", ...).
// An unknown name leaves the current level untouched.
func SetLevel(name string) error {
	level, err := zerolog.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	Logger = Logger.Level(level)
	log.Logger = Logger
	return nil
}

// WithComponent tags all further events of the global logger with a component name.
func WithComponent(name string) {
	Logger = Logger.With().Str("component", name).Logger()
	log.Logger = Logger
}
