// Package logging assembles the structured slog loggers used across quill.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attr helpers so components emit log lines with a
// consistent shape. It also provides a no-op logger for tests and wiring code
// that cannot fail. Prefer these constructors over hand-rolled slog setup.
package logging
