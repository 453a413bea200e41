package runner

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Progress is a normalized frame count reported by a tool.
type Progress struct {
	FramesDone  int64
	FramesTotal int64
}

// Fraction returns done/total clamped to [0,1], or 0 when total is unknown.
func (p Progress) Fraction() float64 {
	if p.FramesTotal <= 0 {
		return 0
	}
	f := float64(p.FramesDone) / float64(p.FramesTotal)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Parser recognizes progress markers in one line of tool output.
type Parser interface {
	Parse(line string) (Progress, bool)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(line string) (Progress, bool)

// Parse implements Parser.
func (f ParserFunc) Parse(line string) (Progress, bool) { return f(line) }

// Signature is an output pattern that identifies a broken environment, such
// as a missing plugin or Python module, rather than a bad input.
type Signature struct {
	Pattern *regexp.Regexp
	Reason  string
}

// MatchSignature returns the first signature whose pattern matches line.
func MatchSignature(signatures []Signature, line string) (Signature, bool) {
	for _, sig := range signatures {
		if sig.Pattern != nil && sig.Pattern.MatchString(line) {
			return sig, true
		}
	}
	return Signature{}, false
}

// scanLines splits on '\n' or '\r' so carriage-return progress redraws
// arrive as individual lines.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// tailBuffer keeps the last lines of diagnostic output.
type tailBuffer struct {
	lines    []string
	maxLines int
	maxBytes int
}

func newTailBuffer(maxLines, maxBytes int) *tailBuffer {
	return &tailBuffer{maxLines: maxLines, maxBytes: maxBytes}
}

func (t *tailBuffer) Add(line string) {
	line = strings.TrimRight(line, " \t")
	if strings.TrimSpace(line) == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.maxLines {
		t.lines = t.lines[len(t.lines)-t.maxLines:]
	}
}

const elided = "…"

// String joins the retained lines. When they exceed maxBytes the oldest
// bytes are dropped, cutting only at a rune boundary.
func (t *tailBuffer) String() string {
	out := strings.Join(t.lines, "\n")
	if len(out) <= t.maxBytes {
		return out
	}
	cut := len(out) - t.maxBytes + len(elided)
	for cut < len(out) && !utf8.RuneStart(out[cut]) {
		cut++
	}
	return elided + out[cut:]
}
