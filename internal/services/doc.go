// Package services defines shared utilities consumed by the stage handlers and
// the external tool clients.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, run IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper, and KindOf which maps an
//     error chain onto the failure kinds recorded in batch reports.
//
// Tool-specific argument builders, progress parsers, and failure signatures
// live in the ffmpeg and vspipe subpackages.
package services
