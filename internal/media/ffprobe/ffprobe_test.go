package ffprobe

import (
	"context"
	"errors"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Width: 720, Height: 576},
			{CodecType: "audio", Channels: 2},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
			BitRate:  "32000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if video, ok := result.VideoStream(); !ok || video.Height != 576 {
		t.Fatalf("unexpected video stream %+v ok=%v", video, ok)
	}
	if audio, ok := result.AudioStream(); !ok || audio.Channels != 2 {
		t.Fatalf("expected first audio stream, got %+v ok=%v", audio, ok)
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
			BitRate:  "nope",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if _, ok := result.AudioStream(); ok {
		t.Fatal("expected no audio stream")
	}
}

func TestStreamFrameRateAndCount(t *testing.T) {
	tests := []struct {
		name    string
		stream  Stream
		wantNum int
		wantDen int
		wantOK  bool
	}{
		{"real rate", Stream{RFrameRate: "30000/1001", AvgFrameRate: "25/1"}, 30000, 1001, true},
		{"avg fallback", Stream{RFrameRate: "0/0", AvgFrameRate: "25/1"}, 25, 1, true},
		{"missing", Stream{}, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			num, den, ok := tt.stream.FrameRate()
			if num != tt.wantNum || den != tt.wantDen || ok != tt.wantOK {
				t.Fatalf("FrameRate = %d/%d %v, want %d/%d %v", num, den, ok, tt.wantNum, tt.wantDen, tt.wantOK)
			}
		})
	}

	if got := (Stream{NBFrames: "1500"}).FrameCount(); got != 1500 {
		t.Fatalf("FrameCount = %d, want 1500", got)
	}
	if got := (Stream{NBFrames: "N/A"}).FrameCount(); got != 0 {
		t.Fatalf("FrameCount = %d, want 0", got)
	}
}

func TestParseRatio(t *testing.T) {
	if num, den, ok := ParseRatio("16:15", ":"); !ok || num != 16 || den != 15 {
		t.Fatalf("unexpected ratio %d:%d %v", num, den, ok)
	}
	if _, _, ok := ParseRatio("0:1", ":"); ok {
		t.Fatal("expected zero numerator to be rejected")
	}
	if _, _, ok := ParseRatio("garbage", ":"); ok {
		t.Fatal("expected malformed ratio to be rejected")
	}
}

func writeStub(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestInspectDecodesStubOutput(t *testing.T) {
	stub := writeStub(t, `cat <<'JSON'
{"streams":[{"index":0,"codec_type":"video","codec_name":"dvvideo","width":720,"height":576,"field_order":"bb","r_frame_rate":"25/1"}],"format":{"duration":"10.0"}}
JSON
`)
	result, err := Inspect(context.Background(), stub, "/media/clip.dv")
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	video, ok := result.VideoStream()
	if !ok || video.FieldOrder != "bb" {
		t.Fatalf("unexpected video stream %+v", video)
	}
	if len(result.RawJSON()) == 0 {
		t.Fatal("expected raw payload to be retained")
	}
}

func TestInspectReportsStderr(t *testing.T) {
	stub := writeStub(t, "echo 'Invalid data found when processing input' >&2\nexit 1\n")
	_, err := Inspect(context.Background(), stub, "/media/broken.avi")
	var probeErr *Error
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if !strings.Contains(probeErr.Stderr, "Invalid data") {
		t.Fatalf("expected stderr captured, got %q", probeErr.Stderr)
	}
}

func TestInspectMissingBinary(t *testing.T) {
	_, err := Inspect(context.Background(), filepath.Join(t.TempDir(), "missing-ffprobe"), "/media/clip.dv")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if !errors.Is(err, exec.ErrNotFound) && !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
