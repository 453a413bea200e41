package vspipe

import (
	"regexp"
	"strconv"

	"hdvapourize/internal/runner"
)

var (
	frameRe  = regexp.MustCompile(`Frame:\s*(\d+)\s*/\s*(\d+)`)
	outputRe = regexp.MustCompile(`Output\s+(\d+)\s+frames\s+in`)
)

// ProgressParser reads vspipe's --progress output. Total is used when a line
// carries no total of its own, such as the final summary.
type ProgressParser struct {
	Total int64
}

// Parse implements runner.Parser.
func (p ProgressParser) Parse(line string) (runner.Progress, bool) {
	if m := frameRe.FindStringSubmatch(line); m != nil {
		done, err1 := strconv.ParseInt(m[1], 10, 64)
		total, err2 := strconv.ParseInt(m[2], 10, 64)
		if err1 != nil || err2 != nil {
			return runner.Progress{}, false
		}
		if p.Total > 0 && (total <= 0 || p.Total < total) {
			total = p.Total
		}
		return runner.Progress{FramesDone: done, FramesTotal: total}, true
	}
	if m := outputRe.FindStringSubmatch(line); m != nil {
		done, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return runner.Progress{}, false
		}
		total := p.Total
		if total <= 0 {
			total = done
		}
		return runner.Progress{FramesDone: done, FramesTotal: total}, true
	}
	return runner.Progress{}, false
}
