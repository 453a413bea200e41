// Package logging assembles structured slog loggers and formatting helpers used
// across hdvapourize.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code automatically tags
// log lines with run IDs, job IDs, stages, and correlation IDs. Every batch run
// also writes a JSON copy of its log to a per-run file that CleanupOldLogs
// prunes after the configured retention window.
package logging
