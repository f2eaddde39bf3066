// Package logger sets up the process-wide log/slog JSON logger, with an
// optional rotating file sink, and carries request-scoped loggers through
// contexts.
package logger
