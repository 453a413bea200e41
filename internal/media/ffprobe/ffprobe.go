package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index              int    `json:"index"`
	CodecName          string `json:"codec_name"`
	CodecType          string `json:"codec_type"`
	CodecTag           string `json:"codec_tag_string"`
	Profile            string `json:"profile"`
	Duration           string `json:"duration"`
	BitRate            string `json:"bit_rate"`
	Width              int    `json:"width"`
	Height             int    `json:"height"`
	PixFmt             string `json:"pix_fmt"`
	FieldOrder         string `json:"field_order"`
	RFrameRate         string `json:"r_frame_rate"`
	AvgFrameRate       string `json:"avg_frame_rate"`
	NBFrames           string `json:"nb_frames"`
	SampleAspectRatio  string `json:"sample_aspect_ratio"`
	DisplayAspectRatio string `json:"display_aspect_ratio"`
	ColorPrimaries     string `json:"color_primaries"`
	ColorTransfer      string `json:"color_transfer"`
	ColorSpace         string `json:"color_space"`
	ColorRange         string `json:"color_range"`
	SampleRate         string `json:"sample_rate"`
	Channels           int    `json:"channels"`
	ChannelLayout      string `json:"channel_layout"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Error carries ffprobe's stderr alongside the exit error.
type Error struct {
	Path   string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("ffprobe %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("ffprobe %s: %v: %s", e.Path, e.Err, e.Stderr)
}

func (e *Error) Unwrap() error { return e.Err }

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return Result{}, &Error{Path: path, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}

	var result Result
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	result.raw = append([]byte(nil), stdout.Bytes()...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// VideoStream returns the first video stream.
func (r Result) VideoStream() (Stream, bool) {
	return r.firstOfType("video")
}

// AudioStream returns the first audio stream.
func (r Result) AudioStream() (Stream, bool) {
	return r.firstOfType("audio")
}

func (r Result) firstOfType(kind string) (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			return stream, true
		}
	}
	return Stream{}, false
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	return r.countOfType("video")
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return r.countOfType("audio")
}

func (r Result) countOfType(kind string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// BitRate returns the container bitrate in bits per second, or 0 when unavailable.
func (r Result) BitRate() int64 {
	rate := parseFloat(r.Format.BitRate)
	if math.IsNaN(rate) || rate < 0 {
		return 0
	}
	return int64(rate)
}

// FrameRate returns the stream's real base frame rate as numerator and
// denominator, falling back to the average rate.
func (s Stream) FrameRate() (int, int, bool) {
	if num, den, ok := ParseRatio(s.RFrameRate, "/"); ok {
		return num, den, true
	}
	return ParseRatio(s.AvgFrameRate, "/")
}

// FrameCount returns nb_frames when ffprobe reported it.
func (s Stream) FrameCount() int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s.NBFrames), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ParseRatio parses "a/b" or "a:b" style ratios. A zero numerator or
// denominator is rejected.
func ParseRatio(value, sep string) (int, int, bool) {
	parts := strings.SplitN(strings.TrimSpace(value), sep, 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	num, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || num <= 0 {
		return 0, 0, false
	}
	den, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || den <= 0 {
		return 0, 0, false
	}
	return num, den, true
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
