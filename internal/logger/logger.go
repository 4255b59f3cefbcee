// Package logger provides leveled diagnostics for faceindex.
// Warnings and errors are always written; debug and info messages are only
// written when verbose mode is enabled via the --verbose flag.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer and returns the previous one.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := output
	output = w
	return prev
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	if IsVerbose() {
		write("[DEBUG] ", format, args...)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	if IsVerbose() {
		write("[INFO] ", format, args...)
	}
}

// Warn prints a warning.
func Warn(format string, args ...any) {
	write("[WARN] ", format, args...)
}

// Error prints an error that did not stop the current operation.
func Error(format string, args ...any) {
	write("[ERROR] ", format, args...)
}

// write serializes output so concurrent callers never interleave lines.
func write(prefix, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(output, prefix+format+"\n", args...)
}
