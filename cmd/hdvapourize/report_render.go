package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"hdvapourize/internal/batch"
	"hdvapourize/internal/job"
	"hdvapourize/internal/workflow"
)

func renderReport(report *batch.Report, runLog string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nRun %s finished in %s\n", report.RunID, formatDuration(report.Duration))
	fmt.Fprintf(&b, "  %d succeeded, %d failed, %d skipped, %d cancelled (of %d)\n",
		report.Succeeded, report.Failed, report.Skipped, report.Cancelled, report.Total())
	if report.FramesProcessed > 0 {
		fmt.Fprintf(&b, "  %s frames at %s fps, %s files/hour\n",
			humanize.Comma(report.FramesProcessed),
			humanize.FtoaWithDigits(roundTo(report.FramesPerSecond, 2), 2),
			humanize.FtoaWithDigits(roundTo(report.FilesPerHour, 1), 1))
	}
	if report.AvgSecondsPerFile > 0 {
		avg := time.Duration(report.AvgSecondsPerFile * float64(time.Second))
		fmt.Fprintf(&b, "  average %s per file, peak concurrency %d\n", formatDuration(avg), report.PeakConcurrency)
	}
	if runLog != "" {
		fmt.Fprintf(&b, "  log: %s\n", runLog)
	}
	if len(report.Jobs) == 0 {
		return b.String()
	}

	b.WriteString("\n")
	b.WriteString(renderJobTable(report.Jobs))
	b.WriteString("\n")
	return b.String()
}

func renderJobTable(jobs []batch.JobSummary) string {
	headers := []string{"File", "Class", "State", "Frames", "Time", "Size", "Detail"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(jobs))
	var totalFrames int64
	var totalElapsed time.Duration
	for _, s := range jobs {
		totalFrames += s.Frames
		totalElapsed += s.Elapsed
		name := s.RelPath
		if name == "" {
			name = filepath.Base(s.Input)
		}
		frames := humanize.Comma(s.Frames)
		if s.Truncated {
			frames += "*"
		}
		rows = append(rows, []string{
			name,
			s.SourceClass,
			workflow.StageLabel(string(s.State)),
			frames,
			formatDuration(s.Elapsed),
			outputSize(s),
			jobDetail(s),
		})
	}
	footer := []string{fmt.Sprintf("%d files", len(jobs)), "", "", humanize.Comma(totalFrames), formatDuration(totalElapsed)}
	return renderTableWithFooter(headers, rows, footer, aligns)
}

func jobDetail(s batch.JobSummary) string {
	switch s.State {
	case job.StateSucceeded:
		return s.Output
	case job.StateSkipped:
		if s.SkipReason != "" {
			return s.SkipReason
		}
	}
	detail := s.Error
	if s.FailedStage != "" {
		detail = workflow.StageLabel(string(s.FailedStage)) + ": " + detail
	}
	return truncate(detail, 80)
}

func outputSize(s batch.JobSummary) string {
	if s.State != job.StateSucceeded {
		return ""
	}
	info, err := os.Stat(s.Output)
	if err != nil {
		return ""
	}
	return humanize.IBytes(uint64(info.Size()))
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Minute {
		return d.Round(100 * time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}

// roundTo rounds v half away from zero; FtoaWithDigits alone truncates.
func roundTo(v float64, digits int) float64 {
	scale := math.Pow10(digits)
	return math.Round(v*scale) / scale
}
