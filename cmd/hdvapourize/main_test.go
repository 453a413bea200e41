package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pelletier/go-toml/v2"

	"hdvapourize/internal/batch"
	"hdvapourize/internal/config"
	"hdvapourize/internal/job"
	"hdvapourize/internal/testsupport"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func exitCode(err error) int {
	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	if err != nil {
		return 1
	}
	return 0
}

func TestRunSingleFile(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubTools(testsupport.StubOptions{Frames: 24}))
	configPath := writeTestConfig(t, cfg)
	input := filepath.Join(testsupport.BaseDir(cfg), "tape.dv")
	testsupport.WriteFile(t, input, 256)

	stdout, _, err := runCLI(t, "--config", configPath, "run", input)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(stdout, "1 succeeded, 0 failed") {
		t.Fatalf("unexpected report:\n%s", stdout)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, "tape_prores.mov")); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
}

func TestRunBatchReportsFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubTools(testsupport.StubOptions{Frames: 24}))
	configPath := writeTestConfig(t, cfg)
	input := filepath.Join(testsupport.BaseDir(cfg), "tapes")
	testsupport.WriteFile(t, filepath.Join(input, "a.dv"), 256)
	testsupport.WriteFile(t, filepath.Join(input, "b.dv"), 256)
	testsupport.WriteMalformed(t, filepath.Join(input, "broken.dv"))

	stdout, _, err := runCLI(t, "--config", configPath, "run", "--batch", "--unclassified", "best-effort", input)
	if code := exitCode(err); code != 1 {
		t.Fatalf("expected exit 1, got %d (%v)", code, err)
	}
	if !strings.Contains(stdout, "2 succeeded, 1 failed") {
		t.Fatalf("unexpected report:\n%s", stdout)
	}
	if !strings.Contains(stdout, "broken.dv") {
		t.Fatalf("report should list the failed file:\n%s", stdout)
	}
}

func TestRunInputModeMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubTools(testsupport.StubOptions{}))
	configPath := writeTestConfig(t, cfg)
	dir := filepath.Join(testsupport.BaseDir(cfg), "tapes")
	file := filepath.Join(dir, "a.dv")
	testsupport.WriteFile(t, file, 128)

	if _, _, err := runCLI(t, "--config", configPath, "run", dir); err == nil || !strings.Contains(err.Error(), "--batch") {
		t.Fatalf("directory without --batch should be refused, got %v", err)
	}
	if _, _, err := runCLI(t, "--config", configPath, "run", "--batch", file); err == nil {
		t.Fatal("file with --batch should be refused")
	}
	if _, _, err := runCLI(t, "--config", configPath, "run"); err == nil {
		t.Fatal("missing input should be refused")
	}
}

func TestRunPreflightFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)
	input := filepath.Join(testsupport.BaseDir(cfg), "tape.dv")
	testsupport.WriteFile(t, input, 128)

	_, stderr, err := runCLI(t, "--config", configPath, "run", input)
	if code := exitCode(err); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "Preflight failed") || !strings.Contains(stderr, "FFmpeg") {
		t.Fatalf("expected preflight failures on stderr, got:\n%s", stderr)
	}
}

func TestHistoryAfterRun(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithStubTools(testsupport.StubOptions{Frames: 12}),
		testsupport.WithHistory(),
	)
	configPath := writeTestConfig(t, cfg)
	input := filepath.Join(testsupport.BaseDir(cfg), "tape.dv")
	testsupport.WriteFile(t, input, 256)

	if _, _, err := runCLI(t, "--config", configPath, "run", "--test-frames", "6", input); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	stdout, _, err := runCLI(t, "--config", configPath, "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(stdout, "(test)") || !strings.Contains(stdout, input) {
		t.Fatalf("history should list the test-mode run:\n%s", stdout)
	}
}

func TestHistoryWithoutDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	stdout, _, err := runCLI(t, "--config", configPath, "history")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "No runs recorded") {
		t.Fatalf("unexpected output %q", stdout)
	}
}

func TestRenderReport(t *testing.T) {
	report := &batch.Report{
		RunID:             "run-1",
		Duration:          90 * time.Second,
		Succeeded:         1,
		Failed:            1,
		FramesProcessed:   12345,
		FramesPerSecond:   137.166,
		FilesPerHour:      40,
		AvgSecondsPerFile: 45,
		PeakConcurrency:   2,
		Jobs: []batch.JobSummary{
			{Input: "/in/a.dv", RelPath: "a.dv", Output: "/out/a_prores.mov", State: job.StateSucceeded, Frames: 12345, Elapsed: 45 * time.Second},
			{Input: "/in/b.dv", RelPath: "b.dv", State: job.StateFailed, FailedStage: job.StageProcess, Error: "vspipe exited 1"},
		},
	}
	out := renderReport(report, "/logs/run.log")
	for _, want := range []string{"12,345 frames", "137.17 fps", "1 succeeded, 1 failed", "Process: vspipe exited 1", "/logs/run.log"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "2 FILES") || !strings.Contains(out, "2 files") {
		t.Fatalf("footer should keep its case:\n%s", out)
	}
}

func TestRoundTo(t *testing.T) {
	tests := []struct {
		in     float64
		digits int
		want   string
	}{
		{137.166, 2, "137.17"},
		{137.164, 2, "137.16"},
		{12.25, 1, "12.3"},
	}
	for _, tt := range tests {
		if got := humanize.FtoaWithDigits(roundTo(tt.in, tt.digits), tt.digits); got != tt.want {
			t.Fatalf("roundTo(%v, %d) = %s, want %s", tt.in, tt.digits, got, tt.want)
		}
	}
}

func TestCheckCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubTools(testsupport.StubOptions{}))
	configPath := writeTestConfig(t, cfg)

	stdout, _, err := runCLI(t, "--config", configPath, "check")
	if err != nil {
		t.Fatalf("check failed: %v\n%s", err, stdout)
	}
	for _, want := range []string{"Preflight", "FFmpeg prores_ks", "Ready to convert"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("check output missing %q:\n%s", want, stdout)
		}
	}

	bare := testsupport.NewConfig(t)
	stdout, _, err = runCLI(t, "--config", writeTestConfig(t, bare), "check")
	if code := exitCode(err); code != 1 {
		t.Fatalf("expected exit 1 without tools, got %d", code)
	}
	if !strings.Contains(stdout, "required check(s) failed") {
		t.Fatalf("unexpected output:\n%s", stdout)
	}
}

func TestLogsShowsNewestRunLog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	stdout, _, err := runCLI(t, "--config", configPath, "logs")
	if err != nil || !strings.Contains(stdout, "No run logs yet") {
		t.Fatalf("expected empty notice, got %q (%v)", stdout, err)
	}

	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	older := filepath.Join(cfg.Paths.LogDir, "run-20260101-000000.log")
	newer := filepath.Join(cfg.Paths.LogDir, "run-20261017-080000.log")
	if err := os.WriteFile(older, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(newer, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err = runCLI(t, "--config", configPath, "logs", "-n", "2")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "second\nthird\n" {
		t.Fatalf("unexpected tail %q", stdout)
	}
}
