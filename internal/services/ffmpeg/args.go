package ffmpeg

import (
	"strconv"
	"strings"
)

// ColorTags are the color metadata flags written into the deliverable.
type ColorTags struct {
	Primaries string
	Transfer  string
	Matrix    string
}

// ColorTagsFor maps a configured target color space onto ffmpeg tag names.
// Unknown values fall back to BT.709.
func ColorTagsFor(colorSpace string) ColorTags {
	switch strings.ToLower(strings.TrimSpace(colorSpace)) {
	case "dci-p3":
		return ColorTags{Primaries: "smpte432", Transfer: "bt709", Matrix: "bt709"}
	default:
		return ColorTags{Primaries: "bt709", Transfer: "bt709", Matrix: "bt709"}
	}
}

func (c ColorTags) args() []string {
	return []string{
		"-color_primaries", c.Primaries,
		"-color_trc", c.Transfer,
		"-colorspace", c.Matrix,
		"-color_range", "tv",
	}
}

// ProResFormat returns the pixel format and ProRes profile for a configured
// output format such as YUV422P10.
func ProResFormat(outputFormat string) (pixFmt string, profile string) {
	switch strings.ToUpper(strings.TrimSpace(outputFormat)) {
	case "YUV444P10":
		return "yuv444p10le", "4"
	default:
		return "yuv422p10le", "3"
	}
}

// RewrapOptions configures the rewrap stage.
type RewrapOptions struct {
	Input         string
	Output        string
	Interlaced    bool
	TopFieldFirst bool
	HasAudio      bool
	AudioCodec    string
	ColorSpace    string
	OutputFormat  string
	// FrameLimit caps the encoded frames; zero encodes everything.
	FrameLimit int64
}

// RewrapArgs converts the source into an intra-frame ProRes master that the
// processing engine can seek frame-accurately.
func RewrapArgs(opts RewrapOptions) []string {
	pixFmt, profile := ProResFormat(opts.OutputFormat)
	args := []string{
		"-hide_banner", "-nostdin", "-loglevel", "warning",
		"-i", opts.Input,
		"-map", "0:v:0",
	}
	if opts.HasAudio {
		args = append(args, "-map", "0:a?")
	}
	args = append(args,
		"-c:v", "prores_ks",
		"-profile:v", profile,
		"-pix_fmt", pixFmt,
	)
	if opts.Interlaced {
		top := "0"
		if opts.TopFieldFirst {
			top = "1"
		}
		args = append(args, "-flags", "+ildct+ilme", "-top", top)
	}
	args = append(args, ColorTagsFor(opts.ColorSpace).args()...)
	if opts.HasAudio {
		args = append(args, "-c:a", audioCodec(opts.AudioCodec))
	}
	if opts.FrameLimit > 0 {
		args = append(args, "-frames:v", strconv.FormatInt(opts.FrameLimit, 10))
	}
	args = append(args, "-progress", "pipe:1", "-nostats", "-y", opts.Output)
	return args
}

// EncodeOptions configures the ffmpeg process that consumes the processing
// engine's y4m stream.
type EncodeOptions struct {
	// AudioSource supplies the audio track; typically the rewrapped master.
	AudioSource  string
	HasAudio     bool
	AudioCodec   string
	Output       string
	ColorSpace   string
	OutputFormat string
	FrameLimit   int64
}

// EncodeArgs reads y4m from stdin and writes the final ProRes deliverable.
func EncodeArgs(opts EncodeOptions) []string {
	pixFmt, profile := ProResFormat(opts.OutputFormat)
	args := []string{
		"-hide_banner", "-loglevel", "warning",
		"-f", "yuv4mpegpipe", "-i", "-",
	}
	withAudio := opts.HasAudio && strings.TrimSpace(opts.AudioSource) != ""
	if withAudio {
		args = append(args, "-i", opts.AudioSource, "-map", "0:v:0", "-map", "1:a?")
	} else {
		args = append(args, "-map", "0:v:0")
	}
	args = append(args,
		"-c:v", "prores_ks",
		"-profile:v", profile,
		"-vendor", "apl0",
		"-pix_fmt", pixFmt,
	)
	args = append(args, ColorTagsFor(opts.ColorSpace).args()...)
	if withAudio {
		args = append(args, "-c:a", audioCodec(opts.AudioCodec), "-shortest")
	}
	if opts.FrameLimit > 0 {
		args = append(args, "-frames:v", strconv.FormatInt(opts.FrameLimit, 10))
	}
	args = append(args, "-nostats", "-y", opts.Output)
	return args
}

func audioCodec(codec string) string {
	if codec = strings.TrimSpace(codec); codec != "" {
		return codec
	}
	return "pcm_s24le"
}
