package profile

import (
	"fmt"
	"math"
	"strings"

	"hdvapourize/internal/media/ffprobe"
	"hdvapourize/internal/services"
)

// ScanType reports whether frames are interlaced or progressive.
type ScanType string

const (
	ScanInterlaced  ScanType = "interlaced"
	ScanProgressive ScanType = "progressive"
)

// FieldOrder identifies which field is temporally first.
type FieldOrder string

const (
	FieldTFF         FieldOrder = "tff"
	FieldBFF         FieldOrder = "bff"
	FieldProgressive FieldOrder = "progressive"
)

// Class is the known source family used to select processing parameters.
type Class string

const (
	ClassPALDV        Class = "pal_dv"
	ClassNTSCDV       Class = "ntsc_dv"
	ClassHDV1080i     Class = "hdv_1080i"
	ClassHDV720p      Class = "hdv_720p"
	ClassUnclassified Class = "unclassified"
)

// dvBytesPerSecond approximates the DV25 stream rate used when neither
// nb_frames nor a duration is available.
const dvBytesPerSecond = 3.6 * 1000 * 1000

// FormatProfile is the read-only description of a source file.
type FormatProfile struct {
	Width            int        `json:"width"`
	Height           int        `json:"height"`
	FrameRateNum     int        `json:"frame_rate_num"`
	FrameRateDen     int        `json:"frame_rate_den"`
	Scan             ScanType   `json:"scan"`
	FieldOrder       FieldOrder `json:"field_order"`
	PixelAspect      string     `json:"pixel_aspect"`
	DisplayAspect    string     `json:"display_aspect"`
	VideoCodec       string     `json:"video_codec"`
	PixelFormat      string     `json:"pixel_format"`
	DurationSeconds  float64    `json:"duration_seconds"`
	FrameCount       int64      `json:"frame_count"`
	FrameCountSource string     `json:"frame_count_source"`
	HasAudio         bool       `json:"has_audio"`
	AudioCodec       string     `json:"audio_codec,omitempty"`
	AudioChannels    int        `json:"audio_channels,omitempty"`
	ChannelLayout    string     `json:"channel_layout,omitempty"`
	Class            Class      `json:"class"`
}

// Unknown is the profile recorded for jobs that never completed analysis.
func Unknown() FormatProfile {
	return FormatProfile{Class: ClassUnclassified}
}

// FrameRate returns the frame rate as a float, or 0 when unknown.
func (p FormatProfile) FrameRate() float64 {
	if p.FrameRateDen == 0 {
		return 0
	}
	return float64(p.FrameRateNum) / float64(p.FrameRateDen)
}

// Interlaced reports whether the source needs deinterlacing.
func (p FormatProfile) Interlaced() bool {
	return p.Scan == ScanInterlaced
}

// TopFieldFirst reports the field dominance handed to the deinterlacer.
func (p FormatProfile) TopFieldFirst() bool {
	return p.FieldOrder != FieldBFF
}

// Classified reports whether the profile matched a known source family.
func (p FormatProfile) Classified() bool {
	return p.Class != "" && p.Class != ClassUnclassified
}

// Summary renders a compact description such as "720x576i25 pal_dv".
func (p FormatProfile) Summary() string {
	scan := "p"
	if p.Interlaced() {
		scan = "i"
	}
	rate := p.FrameRate()
	rateText := fmt.Sprintf("%.2f", rate)
	if rate == math.Trunc(rate) {
		rateText = fmt.Sprintf("%.0f", rate)
	}
	return fmt.Sprintf("%dx%d%s%s %s", p.Width, p.Height, scan, rateText, p.Class)
}

// Build converts ffprobe output into a classified FormatProfile. fileSize is
// used for the last-resort frame estimate when the container omits both
// nb_frames and duration.
func Build(result ffprobe.Result, fileSize int64) (FormatProfile, error) {
	video, ok := result.VideoStream()
	if !ok {
		return Unknown(), services.Wrap(services.ErrUnclassifiedFormat, "analyze", "probe", "no video stream", nil)
	}
	if video.Width <= 0 || video.Height <= 0 {
		return Unknown(), services.Wrap(services.ErrUnclassifiedFormat, "analyze", "probe", "video stream has no dimensions", nil)
	}

	p := FormatProfile{
		Width:         video.Width,
		Height:        video.Height,
		VideoCodec:    video.CodecName,
		PixelFormat:   video.PixFmt,
		PixelAspect:   normalizeAspect(video.SampleAspectRatio),
		DisplayAspect: normalizeAspect(video.DisplayAspectRatio),
	}
	if num, den, ok := video.FrameRate(); ok {
		p.FrameRateNum, p.FrameRateDen = num, den
	}

	p.Scan, p.FieldOrder = detectScan(video.FieldOrder, video.Height)

	p.DurationSeconds = result.DurationSeconds()
	if math.IsNaN(p.DurationSeconds) || p.DurationSeconds <= 0 {
		p.DurationSeconds = parseDuration(video.Duration)
	}
	if size := result.SizeBytes(); size > 0 {
		fileSize = size
	}
	p.FrameCount, p.FrameCountSource = estimateFrames(video, p.DurationSeconds, p.FrameRate(), fileSize)

	if audio, ok := result.AudioStream(); ok {
		p.HasAudio = true
		p.AudioCodec = audio.CodecName
		p.AudioChannels = audio.Channels
		p.ChannelLayout = audio.ChannelLayout
		if p.ChannelLayout == "" {
			p.ChannelLayout = layoutForChannels(audio.Channels)
		}
	}

	p.Class = Classify(p)
	return p, nil
}

// detectScan applies the field_order tag first and falls back to a
// height heuristic because DV and HDV muxers frequently omit the tag.
func detectScan(fieldOrder string, height int) (ScanType, FieldOrder) {
	switch strings.ToLower(strings.TrimSpace(fieldOrder)) {
	case "tt", "tb":
		return ScanInterlaced, FieldTFF
	case "bb", "bt":
		return ScanInterlaced, FieldBFF
	case "progressive":
		return ScanProgressive, FieldProgressive
	}
	switch height {
	case 480, 486:
		return ScanInterlaced, FieldBFF
	case 576, 1080:
		return ScanInterlaced, FieldTFF
	}
	return ScanProgressive, FieldProgressive
}

func estimateFrames(video ffprobe.Stream, duration, fps float64, fileSize int64) (int64, string) {
	if n := video.FrameCount(); n > 0 {
		return n, "nb_frames"
	}
	if duration > 0 && fps > 0 {
		return int64(math.Round(duration * fps)), "duration"
	}
	if fileSize > 0 {
		if fps <= 0 {
			fps = 25
		}
		return int64(float64(fileSize) / dvBytesPerSecond * fps), "size"
	}
	return 0, "unknown"
}

func parseDuration(value string) float64 {
	var seconds float64
	if _, err := fmt.Sscanf(strings.TrimSpace(value), "%g", &seconds); err != nil || seconds < 0 {
		return 0
	}
	return seconds
}

func normalizeAspect(value string) string {
	value = strings.TrimSpace(value)
	if num, den, ok := ffprobe.ParseRatio(value, ":"); ok {
		return fmt.Sprintf("%d:%d", num, den)
	}
	return "1:1"
}

func layoutForChannels(channels int) string {
	switch channels {
	case 0:
		return ""
	case 1:
		return "mono"
	case 2:
		return "stereo"
	default:
		return fmt.Sprintf("%dch", channels)
	}
}
