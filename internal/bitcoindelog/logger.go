// Package bitcoindelog holds the one shared logging convention every
// long-lived component in this module follows: a component sub-logger
// tagged with a "component" attribute, defaulting to slog.Default()
// when the caller passes nil.
package bitcoindelog

import "log/slog"

// Component returns logger (or slog.Default() if nil) with a
// "component" attribute set to name, plus any extra key/value pairs.
func Component(logger *slog.Logger, name string, kv ...any) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	args := append([]any{"component", name}, kv...)
	return logger.With(args...)
}
