// Package profile derives a FormatProfile from ffprobe output and classifies
// it into one of the legacy source families the processing stage knows how to
// treat (PAL DV, NTSC DV, HDV 1080i, HDV 720p).
package profile
