// Package rlog is the module's minimal diagnostics façade: logging sits
// outside the core runtime's scope as an external collaborator, not a
// component, so this stays a thin slog wrapper rather than adopting a
// heavier structured-logging library for this kind of low-level runtime
// code.
package rlog

import (
	"log/slog"
	"os"
)

var logger *slog.Logger

func init() {
	level := slog.LevelWarn
	switch os.Getenv("IOUCO_LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Debugf logs worker-loop and ring diagnostics that are noisy by design
// (submit/reap counts, cross-worker delivery) and off unless
// IOUCO_LOG_LEVEL=debug.
func Debugf(msg string, args ...any) {
	logger.Debug(msg, args...)
}

// Errorf logs a recoverable failure: a kernel error surfaced outside the
// normal CQE result path, a malformed inbox delivery, a panic recovered
// from a spawned task.
func Errorf(msg string, args ...any) {
	logger.Error(msg, args...)
}

// Fatalf logs msg at error level and terminates the process. Reserved for
// the worker main loop's contract that kernel setup/enter errors are
// unrecoverable: they are logged and cause termination.
func Fatalf(msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(1)
}
