// Package logger provides structured logging for statichost.
//
// This package wraps log/slog behind a small Logger interface that is
// injected into every component that logs:
//
//   - logger.go: Logger interface, slog-backed implementation, Nop
//   - context.go: request ID propagation through context.Context
//   - redact.go: sensitive attribute redaction
//   - file.go: daily log file sink with retention
//
// There is no process-wide default logger. Components receive a Logger
// from their constructor and derive children with With.
package logger
