package ffmpeg

import (
	"regexp"

	"hdvapourize/internal/runner"
)

// Signatures identify ffmpeg builds that lack a required encoder or muxer.
var Signatures = []runner.Signature{
	{Pattern: regexp.MustCompile(`Unknown encoder '([^']+)'`), Reason: "ffmpeg build lacks a required encoder"},
	{Pattern: regexp.MustCompile(`(?i)Encoder .* not found`), Reason: "ffmpeg build lacks a required encoder"},
	{Pattern: regexp.MustCompile(`(?i)Requested output format '[^']+' is not a suitable output format|Unknown (output )?format`), Reason: "ffmpeg build lacks a required muxer"},
	{Pattern: regexp.MustCompile(`(?i)error while loading shared libraries`), Reason: "ffmpeg shared libraries missing"},
}
