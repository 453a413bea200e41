package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RunLogPattern matches the per-run log files written by RunLogPath.
const RunLogPattern = "run-*.log"

// CleanupOldLogs removes run logs in dir older than retentionDays, leaving
// the active log untouched. A retentionDays value of 0 disables pruning. It
// returns the number of files removed.
func CleanupOldLogs(logger *slog.Logger, dir string, retentionDays int, active string) int {
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	matches, err := filepath.Glob(filepath.Join(dir, RunLogPattern))
	if err != nil {
		return 0
	}
	activeAbs, _ := filepath.Abs(active)

	removed := 0
	for _, path := range matches {
		if abs, err := filepath.Abs(path); err == nil && abs == activeAbs {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("log pruned",
				String("path", path),
				String(FieldEventType, "log_pruned"),
			)
		}
	}
	return removed
}
