// Package debug provides the env-gated diagnostic logger used across the
// orchestrator. Output is off by default; set TASK_ORCHESTRATOR_DEBUG to any
// non-empty value to enable it, and TASK_ORCHESTRATOR_LOG_FILE to mirror the
// stream into a rotating file alongside stderr.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// EnvDebug enables debug output when set to any non-empty value.
	EnvDebug = "TASK_ORCHESTRATOR_DEBUG"

	// EnvLogFile, when set, mirrors all output into a rotating log file.
	EnvLogFile = "TASK_ORCHESTRATOR_LOG_FILE"
)

var (
	mu          sync.Mutex
	enabled     = os.Getenv(EnvDebug) != ""
	verboseMode bool
	sink        io.Writer = newSink()
)

func newSink() io.Writer {
	path := os.Getenv(EnvLogFile)
	if path == "" {
		return os.Stderr
	}
	return io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
	})
}

// Enabled reports whether debug output is currently active, either via the
// environment gate or a runtime SetVerbose call.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled || verboseMode
}

// SetVerbose turns debug output on or off at runtime, overriding the
// environment gate while on.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verboseMode = v
}

// Logf writes a debug line. It is a no-op unless debugging is enabled.
func Logf(format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	emit("DEBUG", format, args...)
}

// Warnf writes a warning line. Warnings are not gated: they surface
// conditions the operator should see even with debugging off.
func Warnf(format string, args ...interface{}) {
	emit("WARN", format, args...)
}

func emit(level, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(sink, "%s %s %s\n", ts, level, message)
}
