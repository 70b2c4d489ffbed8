// Package diag is a small leveled logger wrapping log/slog. It stands in
// for original_source's LOG(level, msg) / IF_LOG(level) { ... } macros: a
// single package-wide logger, checked before doing any work a disabled
// level would throw away.
package diag

import (
	"context"
	"log/slog"
	"os"
)

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Logger is the process-wide diagnostic sink. Replace it (e.g. in a test,
// or to redirect to a file) by assigning a new *slog.Logger built with
// slog.New.
var Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: LevelInfo}))

// Enabled reports whether a log call at level would actually be emitted,
// letting a caller skip building expensive arguments for a level that's
// off.
func Enabled(level slog.Level) bool {
	return Logger.Enabled(context.Background(), level)
}

// Log emits msg at level with args interpreted as alternating key/value
// pairs, the same contract as slog.Logger.Log.
func Log(level slog.Level, msg string, args ...any) {
	Logger.Log(context.Background(), level, msg, args...)
}
