package ffmpeg

import (
	"regexp"
	"strconv"

	"hdvapourize/internal/runner"
)

// frameRe matches both the -progress key/value form ("frame=120") and the
// classic stats line ("frame=  120 fps= 50 ...").
var frameRe = regexp.MustCompile(`(?:^|\s)frame=\s*(\d+)`)

// ProgressParser extracts encoded frame counts from ffmpeg output. ffmpeg
// never reports a total, so Total is supplied from the probed frame count.
type ProgressParser struct {
	Total int64
}

// Parse implements runner.Parser.
func (p ProgressParser) Parse(line string) (runner.Progress, bool) {
	m := frameRe.FindStringSubmatch(line)
	if m == nil {
		return runner.Progress{}, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return runner.Progress{}, false
	}
	return runner.Progress{FramesDone: n, FramesTotal: p.Total}, true
}
