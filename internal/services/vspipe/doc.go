// Package vspipe drives VapourSynth's vspipe: it builds the y4m command line
// for a parameterized script, parses the "Frame: N/M" progress lines, and
// recognizes the errors a broken plugin or Python setup produces.
package vspipe
