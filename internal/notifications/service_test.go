package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hdvapourize/internal/batch"
	"hdvapourize/internal/config"
	"hdvapourize/internal/job"
	"hdvapourize/internal/notifications"
	"hdvapourize/internal/services"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		captured = append(captured, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, &captured
}

func serviceFor(url string) notifications.Service {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = url
	cfg.Notifications.RequestTimeoutSeconds = 5
	return notifications.NewService(&cfg)
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyRunStarted(context.Background(), "run", 3); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).TestNotification(context.Background()); err != nil {
		t.Fatalf("nil config should yield noop, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	failed := batch.JobSummary{
		Input:       "/tapes/1998/xmas.dv",
		RelPath:     "1998/xmas.dv",
		State:       job.StateFailed,
		FailedStage: job.StageProcess,
		FailureKind: services.KindEnvironment,
		Error:       "vspipe: No module named havsfunc",
	}
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "run started",
			send:          func(s notifications.Service) error { return s.NotifyRunStarted(context.Background(), "0123456789abcdef", 1) },
			expectTitle:   "hdvapourize - Run Started",
			expectMessage: "Converting 1 file (run 01234567)",
			expectTags:    "hdvapourize,run,started",
		},
		{
			name: "run completed",
			send: func(s notifications.Service) error {
				return s.NotifyRunCompleted(context.Background(), &batch.Report{Succeeded: 3, Duration: 90 * time.Second})
			},
			expectTitle:   "hdvapourize - Run Complete",
			expectMessage: "3 converted in 1m30s",
			expectTags:    "hdvapourize,run,completed",
		},
		{
			name: "run completed with failures",
			send: func(s notifications.Service) error {
				return s.NotifyRunCompleted(context.Background(), &batch.Report{
					Succeeded: 2, Failed: 1, Skipped: 1, Duration: time.Minute,
					FramesProcessed: 600, FramesPerSecond: 12.34,
				})
			},
			expectTitle:    "hdvapourize - Run Complete (with errors)",
			expectMessage:  "2 converted, 1 failed, 1 skipped, 0 cancelled in 1m0s\n600 frames at 12.3 fps",
			expectTags:     "hdvapourize,run,completed,warning",
			expectPriority: "high",
		},
		{
			name:           "job failed",
			send:           func(s notifications.Service) error { return s.NotifyJobFailed(context.Background(), failed) },
			expectTitle:    "hdvapourize - Job Failed",
			expectMessage:  "Failed: 1998/xmas.dv during process\nvspipe: No module named havsfunc",
			expectTags:     "hdvapourize,error,environment_failure",
			expectPriority: "high",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, captured := newCaptureServer(t, http.StatusOK)
			if err := tc.send(serviceFor(server.URL)); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			if len(*captured) != 1 {
				t.Fatalf("expected one request, got %d", len(*captured))
			}
			got := (*captured)[0]
			if got.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got.title)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got.body)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got.tags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got.priority)
			}
		})
	}
}

func TestNtfyServiceSuppressesJobFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed job failure")
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.JobFailures = false
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyJobFailed(context.Background(), batch.JobSummary{Input: "a.dv"}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server, _ := newCaptureServer(t, http.StatusForbidden)
	err := serviceFor(server.URL).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestNtfyServiceHonoursContext(t *testing.T) {
	server, _ := newCaptureServer(t, http.StatusOK)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := serviceFor(server.URL).TestNotification(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
