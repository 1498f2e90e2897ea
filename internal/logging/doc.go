// Package logging assembles the slog loggers used by castkeep.
//
// It owns the console and JSON handlers, level and output plumbing, the
// standard attribute keys, and warn/error helpers that make every warning
// carry a cause, an impact, and a hint. A no-op logger is provided for tests
// and wiring code that cannot fail.
package logging
