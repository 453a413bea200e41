// Package logs reads the per-run log files under paths.log_dir.
//
// Latest locates the newest run log, Last returns its trailing lines and
// Follow streams lines appended after an offset until the context ends. The
// `logs` command and the status API's /api/logs endpoint are built on these.
package logs
