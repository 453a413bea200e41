package stage

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hdvapourize/internal/runner"
	"hdvapourize/internal/services"
)

func TestFromRunner(t *testing.T) {
	res := runner.Result{FramesDone: 500, FramesTotal: 500, OutputBytes: 2048, ExitCode: 0, Truncated: true, Diagnostic: "tail"}
	out := FromRunner(res, "/tmp/a.mov")
	if out.Artifact != "/tmp/a.mov" || out.FramesDone != 500 || out.BytesDone != 2048 || !out.Truncated || out.Diagnostic != "tail" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestProgressCallback(t *testing.T) {
	var gotDone, gotTotal int64
	cb := ProgressCallback(ReporterFunc(func(done, total int64) {
		gotDone, gotTotal = done, total
	}))
	cb(runner.Progress{FramesDone: 3, FramesTotal: 9})
	if gotDone != 3 || gotTotal != 9 {
		t.Fatalf("callback forwarded %d/%d", gotDone, gotTotal)
	}
	if ProgressCallback(nil) != nil {
		t.Fatal("nil reporter should yield nil callback")
	}
}

func TestHealth(t *testing.T) {
	if h := Healthy("rewrap"); !h.Ready || h.Name != "rewrap" {
		t.Fatalf("unexpected %+v", h)
	}
	if h := Unhealthy("process", "vspipe missing"); h.Ready || h.Detail != "vspipe missing" {
		t.Fatalf("unexpected %+v", h)
	}
}

func TestRequireToolsAndFile(t *testing.T) {
	dir := t.TempDir()
	tool := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(tool, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if h := RequireTools("rewrap", tool); !h.Ready {
		t.Fatalf("expected ready, got %+v", h)
	}
	if h := RequireTools("rewrap", tool, filepath.Join(dir, "vspipe")); h.Ready || !strings.Contains(h.Detail, "vspipe") {
		t.Fatalf("expected missing vspipe, got %+v", h)
	}
	if h := RequireTools("rewrap", " "); h.Ready || h.Detail != "tool not configured" {
		t.Fatalf("unexpected %+v", h)
	}
	if h := RequireFile("process", "script", dir); h.Ready {
		t.Fatal("directory should not satisfy RequireFile")
	}

	combined := Combine("process", Healthy("a"), Unhealthy("b", "broken"))
	if combined.Ready || combined.Name != "process" || combined.Detail != "broken" {
		t.Fatalf("unexpected %+v", combined)
	}
	if h := Combine("process", RequireFile("x", "script", tool)); !h.Ready || h.Name != "process" {
		t.Fatalf("unexpected %+v", h)
	}
}

func TestClassifyContext(t *testing.T) {
	base := errors.New("boom")

	if err := ClassifyContext(context.Background(), services.ErrToolFailure, "analyze", "probe", nil); err != nil {
		t.Fatalf("nil error should stay nil, got %v", err)
	}

	err := ClassifyContext(context.Background(), services.ErrToolFailure, "analyze", "probe", base)
	if services.KindOf(err) != services.KindToolFailure || !errors.Is(err, base) {
		t.Fatalf("unexpected classification: %v", err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if got := services.KindOf(ClassifyContext(cancelled, services.ErrToolFailure, "analyze", "probe", base)); got != services.KindCancelled {
		t.Fatalf("expected cancelled, got %s", got)
	}

	expired, cancelExpired := context.WithTimeout(context.Background(), -time.Second)
	defer cancelExpired()
	if got := services.KindOf(ClassifyContext(expired, services.ErrToolFailure, "analyze", "probe", base)); got != services.KindTimeout {
		t.Fatalf("expected timeout, got %s", got)
	}

	notFound := &exec.Error{Name: "ffprobe", Err: exec.ErrNotFound}
	if got := services.KindOf(ClassifyContext(context.Background(), services.ErrToolFailure, "analyze", "probe", notFound)); got != services.KindEnvironment {
		t.Fatalf("expected environment failure, got %s", got)
	}
}
