// Package processing implements the process stage: vspipe renders the
// parameterized VapourSynth script as y4m and an ffmpeg consumer encodes it,
// with the rewrapped master's audio, into the partial ProRes output.
package processing
