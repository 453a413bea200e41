package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// StubOptions shapes the behaviour of the stub tool binaries.
type StubOptions struct {
	// Frames is the frame count reported by ffprobe and emitted by the
	// tools. Defaults to 60.
	Frames int
	// ProcessSleep delays vspipe before it emits frames, in seconds.
	ProcessSleep int
	// ProcessError makes vspipe print this line to stderr and exit 1.
	ProcessError string
	// RewrapExit makes ffmpeg exit with this code during rewrap.
	RewrapExit int
}

// StubTools are the paths of the written stubs.
type StubTools struct {
	Dir     string
	FFprobe string
	FFmpeg  string
	VSPipe  string
	Script  string
}

// WriteStubTools writes #!/bin/sh stand-ins for ffprobe, ffmpeg and vspipe.
//
// ffprobe describes every input as NTSC DV unless the file contains
// MalformedMarker. ffmpeg lists prores_ks for -encoders, writes its output
// file before reporting progress and honours -frames:v. vspipe emits y4m-ish
// bytes on stdout and honours -e.
func WriteStubTools(t testing.TB, dir string, opts StubOptions) StubTools {
	t.Helper()
	if opts.Frames <= 0 {
		opts.Frames = 60
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	tools := StubTools{
		Dir:     dir,
		FFprobe: filepath.Join(dir, "ffprobe"),
		FFmpeg:  filepath.Join(dir, "ffmpeg"),
		VSPipe:  filepath.Join(dir, "vspipe"),
		Script:  filepath.Join(dir, "process.vpy"),
	}
	writeExecutable(t, tools.FFprobe, ffprobeStub(opts))
	writeExecutable(t, tools.FFmpeg, ffmpegStub(opts))
	writeExecutable(t, tools.VSPipe, vspipeStub(opts))
	if err := os.WriteFile(tools.Script, []byte("import vapoursynth as vs\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return tools
}

func writeExecutable(t testing.TB, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", path, err)
	}
}

func ffprobeStub(opts StubOptions) string {
	duration := float64(opts.Frames) * 1001 / 30000
	return fmt.Sprintf(`#!/bin/sh
for last; do :; done
if grep -q %[1]s "$last" 2>/dev/null; then
  echo "$last: Invalid data found when processing input" >&2
  exit 1
fi
cat <<'JSON'
{
  "streams": [
    {"index": 0, "codec_name": "dvvideo", "codec_type": "video", "width": 720, "height": 480,
     "pix_fmt": "yuv411p", "field_order": "bb", "r_frame_rate": "30000/1001",
     "avg_frame_rate": "30000/1001", "nb_frames": "%[2]d", "sample_aspect_ratio": "8:9",
     "display_aspect_ratio": "4:3", "color_primaries": "smpte432"},
    {"index": 1, "codec_name": "pcm_s16le", "codec_type": "audio", "channels": 2,
     "channel_layout": "stereo", "sample_rate": "48000"}
  ],
  "format": {"nb_streams": 2, "duration": "%[3]f", "format_name": "dv"}
}
JSON
`, MalformedMarker, opts.Frames, duration)
}

func ffmpegStub(opts StubOptions) string {
	var b strings.Builder
	b.WriteString(`#!/bin/sh
case " $* " in
  *" -encoders "*)
    echo " V..... prores_ks            Apple ProRes (iCodec Pro) (codec prores)"
    echo " A....D pcm_s24le            PCM signed 24-bit little-endian"
    exit 0
    ;;
esac
limit=0
prev=""
stdin=0
for a; do
  if [ "$prev" = "-frames:v" ]; then limit=$a; fi
  if [ "$prev" = "-i" ] && [ "$a" = "-" ]; then stdin=1; fi
  prev=$a
done
out=$a
if [ "$stdin" = "1" ]; then
  cat > /dev/null
  printf '%0256d' 0 > "$out"
  exit 0
fi
`)
	if opts.RewrapExit != 0 {
		fmt.Fprintf(&b, "echo \"Error while decoding stream #0:0: Invalid data found when processing input\" >&2\nexit %d\n", opts.RewrapExit)
	}
	fmt.Fprintf(&b, `total=%d
if [ "$limit" -gt 0 ] && [ "$limit" -lt "$total" ]; then total=$limit; fi
printf '%%0256d' 0 > "$out"
i=1
while [ $i -le $total ]; do
  echo "frame=$i"
  i=$((i+1))
done
echo "progress=end"
`, opts.Frames)
	return b.String()
}

func vspipeStub(opts StubOptions) string {
	var b strings.Builder
	b.WriteString(`#!/bin/sh
if [ "$1" = "--version" ]; then
  echo "VapourSynth Video Processing Library"
  echo "Core R65"
  exit 0
fi
end=-1
prev=""
for a; do
  if [ "$prev" = "-e" ]; then end=$a; fi
  prev=$a
done
`)
	if opts.ProcessError != "" {
		fmt.Fprintf(&b, "echo 'Failed to evaluate the script:' >&2\necho %q >&2\nexit 1\n", opts.ProcessError)
	}
	if opts.ProcessSleep > 0 {
		fmt.Fprintf(&b, "sleep %d\n", opts.ProcessSleep)
	}
	fmt.Fprintf(&b, `count=%d
if [ "$end" -ge 0 ] && [ $((end+1)) -lt "$count" ]; then count=$((end+1)); fi
i=1
while [ $i -le $count ]; do
  printf 'Frame: %%d/%%d\r' $i $count >&2
  echo "FRAME"
  i=$((i+1))
done
echo "Output $count frames in 0.01 seconds (100.00 fps)" >&2
`, opts.Frames)
	return b.String()
}
