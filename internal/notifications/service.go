package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"hdvapourize/internal/batch"
	"hdvapourize/internal/config"
)

const userAgent = "hdvapourize/0.1"

// Service is the notification surface used by the orchestrator.
type Service interface {
	NotifyRunStarted(ctx context.Context, runID string, files int) error
	NotifyRunCompleted(ctx context.Context, report *batch.Report) error
	NotifyJobFailed(ctx context.Context, summary batch.JobSummary) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed Service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: cfg.NotifyTimeout()},
		jobFailures: cfg.Notifications.JobFailures,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	jobFailures bool
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, runID string, files int) error {
	noun := "files"
	if files == 1 {
		noun = "file"
	}
	return n.send(ctx, payload{
		title:   "hdvapourize - Run Started",
		message: fmt.Sprintf("Converting %d %s (run %s)", files, noun, shortRunID(runID)),
		tags:    []string{"hdvapourize", "run", "started"},
	})
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, report *batch.Report) error {
	if report == nil {
		return nil
	}
	duration := report.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	data := payload{tags: []string{"hdvapourize", "run", "completed"}}
	switch {
	case report.Successful() && report.Skipped == 0:
		data.title = "hdvapourize - Run Complete"
		data.message = fmt.Sprintf("%d converted in %s", report.Succeeded, duration)
	case report.Successful():
		data.title = "hdvapourize - Run Complete"
		data.message = fmt.Sprintf("%d converted, %d skipped in %s", report.Succeeded, report.Skipped, duration)
	default:
		data.title = "hdvapourize - Run Complete (with errors)"
		data.message = fmt.Sprintf("%d converted, %d failed, %d skipped, %d cancelled in %s",
			report.Succeeded, report.Failed, report.Skipped, report.Cancelled, duration)
		data.priority = "high"
		data.tags = append(data.tags, "warning")
	}
	if report.FramesProcessed > 0 {
		data.message += fmt.Sprintf("\n%d frames at %.1f fps", report.FramesProcessed, report.FramesPerSecond)
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, summary batch.JobSummary) error {
	if !n.jobFailures {
		return nil
	}
	name := summary.RelPath
	if name == "" {
		name = filepath.Base(summary.Input)
	}
	var b strings.Builder
	b.WriteString("Failed: ")
	b.WriteString(name)
	if summary.FailedStage != "" {
		b.WriteString(" during ")
		b.WriteString(string(summary.FailedStage))
	}
	if msg := strings.TrimSpace(summary.Error); msg != "" {
		b.WriteString("\n")
		b.WriteString(msg)
	}
	return n.send(ctx, payload{
		title:    "hdvapourize - Job Failed",
		message:  b.String(),
		tags:     []string{"hdvapourize", "error", string(summary.FailureKind)},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "hdvapourize - Test",
		message:  "Notification system test",
		tags:     []string{"hdvapourize", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if tags := compact(data.tags); len(tags) > 0 {
		req.Header.Set("Tags", strings.Join(tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func compact(tags []string) []string {
	out := tags[:0:0]
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type noopService struct{}

func (noopService) NotifyRunStarted(context.Context, string, int) error     { return nil }
func (noopService) NotifyRunCompleted(context.Context, *batch.Report) error { return nil }
func (noopService) NotifyJobFailed(context.Context, batch.JobSummary) error { return nil }
func (noopService) TestNotification(context.Context) error                  { return nil }
