// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package. Non-interactive processes
// (containers, CI) log JSON to stdout; when attached to a terminal the
// charmbracelet console handler is used instead. A request- or task-scoped
// logger can be carried through a context.Context.
package logger
