// Package ffmpeg builds ffmpeg command lines for the rewrap stage and the
// final ProRes encode, parses ffmpeg's frame progress output, and lists the
// stderr signatures that indicate a broken installation rather than a bad
// input.
package ffmpeg
