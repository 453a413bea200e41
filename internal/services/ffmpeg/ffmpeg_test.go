package ffmpeg_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"hdvapourize/internal/runner"
	"hdvapourize/internal/services/ffmpeg"
)

func argValue(args []string, flag string) (string, bool) {
	idx := slices.Index(args, flag)
	if idx < 0 || idx+1 >= len(args) {
		return "", false
	}
	return args[idx+1], true
}

func TestRewrapArgsInterlacedBFF(t *testing.T) {
	args := ffmpeg.RewrapArgs(ffmpeg.RewrapOptions{
		Input:         "/in/tape01.dv",
		Output:        "/tmp/job/rewrap.mov",
		Interlaced:    true,
		TopFieldFirst: false,
		HasAudio:      true,
		ColorSpace:    "dci-p3",
		OutputFormat:  "YUV422P10",
	})

	top, ok := argValue(args, "-top")
	assert.True(t, ok)
	assert.Equal(t, "0", top)
	flags, _ := argValue(args, "-flags")
	assert.Equal(t, "+ildct+ilme", flags)
	codec, _ := argValue(args, "-c:v")
	assert.Equal(t, "prores_ks", codec)
	profile, _ := argValue(args, "-profile:v")
	assert.Equal(t, "3", profile)
	primaries, _ := argValue(args, "-color_primaries")
	assert.Equal(t, "smpte432", primaries)
	audio, _ := argValue(args, "-c:a")
	assert.Equal(t, "pcm_s24le", audio)
	progress, _ := argValue(args, "-progress")
	assert.Equal(t, "pipe:1", progress)
	assert.Equal(t, "/tmp/job/rewrap.mov", args[len(args)-1])
	assert.NotContains(t, args, "-frames:v")
}

func TestRewrapArgsProgressiveWithoutAudio(t *testing.T) {
	args := ffmpeg.RewrapArgs(ffmpeg.RewrapOptions{
		Input:      "/in/clip.m2ts",
		Output:     "/tmp/out.mov",
		FrameLimit: 200,
		ColorSpace: "bt709",
	})
	assert.NotContains(t, args, "-top")
	assert.NotContains(t, args, "-c:a")
	assert.NotContains(t, args, "0:a?")
	limit, ok := argValue(args, "-frames:v")
	assert.True(t, ok)
	assert.Equal(t, "200", limit)
	primaries, _ := argValue(args, "-color_primaries")
	assert.Equal(t, "bt709", primaries)
}

func TestEncodeArgsMapsAudioFromMaster(t *testing.T) {
	args := ffmpeg.EncodeArgs(ffmpeg.EncodeOptions{
		AudioSource:  "/tmp/job/rewrap.mov",
		HasAudio:     true,
		Output:       "/out/tape01_prores.partial.mov",
		ColorSpace:   "dci-p3",
		OutputFormat: "YUV444P10",
	})
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-f yuv4mpegpipe -i - -i /tmp/job/rewrap.mov -map 0:v:0 -map 1:a?")
	assert.Contains(t, args, "-shortest")
	pixFmt, _ := argValue(args, "-pix_fmt")
	assert.Equal(t, "yuv444p10le", pixFmt)
	profile, _ := argValue(args, "-profile:v")
	assert.Equal(t, "4", profile)
	assert.Equal(t, "/out/tape01_prores.partial.mov", args[len(args)-1])
}

func TestEncodeArgsVideoOnly(t *testing.T) {
	args := ffmpeg.EncodeArgs(ffmpeg.EncodeOptions{Output: "/out/a.mov", HasAudio: true})
	assert.NotContains(t, args, "1:a?")
	assert.NotContains(t, args, "-shortest")
}

func TestProgressParser(t *testing.T) {
	parser := ffmpeg.ProgressParser{Total: 1000}
	tests := []struct {
		line   string
		want   int64
		wantOK bool
	}{
		{"frame=120", 120, true},
		{"frame=  345 fps= 50 q=-0.0 size=   10240kB time=00:00:13.80 bitrate=6078.5kbits/s", 345, true},
		{"fps=50.00", 0, false},
		{"progress=continue", 0, false},
		{"out_time=00:00:01.000000", 0, false},
		{"keyframe=12", 0, false},
	}
	for _, tt := range tests {
		got, ok := parser.Parse(tt.line)
		assert.Equal(t, tt.wantOK, ok, tt.line)
		if ok {
			assert.Equal(t, tt.want, got.FramesDone, tt.line)
			assert.Equal(t, int64(1000), got.FramesTotal)
		}
	}
	var _ runner.Parser = parser
}

func TestSignatures(t *testing.T) {
	sig, ok := runner.MatchSignature(ffmpeg.Signatures, "Unknown encoder 'prores_ks'")
	assert.True(t, ok)
	assert.Contains(t, sig.Reason, "encoder")
	_, ok = runner.MatchSignature(ffmpeg.Signatures, "Invalid data found when processing input")
	assert.False(t, ok)
}
