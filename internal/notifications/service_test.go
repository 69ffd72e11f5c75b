package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"captioner/internal/config"
	"captioner/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func captureServer(t *testing.T) (*httptest.Server, *[]captured) {
	t.Helper()
	var seen []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen = append(seen, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
	}))
	t.Cleanup(server.Close)
	return server, &seen
}

func serviceFor(topic string, completion, errorsOn bool) notifications.Service {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = topic
	cfg.Notifications.Completion = completion
	cfg.Notifications.Errors = errorsOn
	return notifications.NewService(&cfg)
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	svc := serviceFor("", true, true)
	if err := svc.NotifyTaskStarted(context.Background(), "movie.srt"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	server, seen := captureServer(t)
	svc := serviceFor(server.URL, true, true)
	ctx := context.Background()

	if err := svc.NotifyTaskStarted(ctx, "movie.srt"); err != nil {
		t.Fatalf("NotifyTaskStarted: %v", err)
	}
	if err := svc.NotifyTaskCompleted(ctx, "movie.srt", "movie.zh.srt", 90*time.Second); err != nil {
		t.Fatalf("NotifyTaskCompleted: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("model unreachable"), "validation"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}

	if len(*seen) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(*seen))
	}
	got := *seen
	if got[0].title != "Captioner - Started" || got[0].body != "Processing: movie.srt" {
		t.Errorf("unexpected start notification %+v", got[0])
	}
	if got[1].title != "Captioner - Complete" || got[1].priority != "high" {
		t.Errorf("unexpected completion notification %+v", got[1])
	}
	if got[1].body != "Subtitles ready: movie.zh.srt (1m30s)" {
		t.Errorf("unexpected completion body %q", got[1].body)
	}
	if got[2].tags != "captioner,error,alert" {
		t.Errorf("unexpected error tags %q", got[2].tags)
	}
	if got[2].body != "Error with validation: model unreachable" {
		t.Errorf("unexpected error body %q", got[2].body)
	}
}

func TestNtfyServiceRespectsToggles(t *testing.T) {
	server, seen := captureServer(t)
	svc := serviceFor(server.URL, false, false)
	ctx := context.Background()

	if err := svc.NotifyTaskCompleted(ctx, "a.srt", "b.srt", time.Minute); err != nil {
		t.Fatalf("NotifyTaskCompleted: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("boom"), ""); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}
	if len(*seen) != 0 {
		t.Fatalf("expected suppressed notifications, got %d", len(*seen))
	}
}

func TestNtfyServiceReportsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden topic", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	svc := serviceFor(server.URL, true, true)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
