// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual stream properties including field order, frame
//     rates, aspect ratios, and color tags
//   - Error: a failed inspection with ffprobe's stderr attached
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
package ffprobe
