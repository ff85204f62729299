package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-media-relay/internal/config"
	"github.com/samvad-hq/samvad-media-relay/internal/pipeline"
)

// silentReporter satisfies pipeline.Reporter without any transport.
type silentReporter struct {
	failures []pipeline.FailureKind
}

func (s *silentReporter) Begin(context.Context, int) error                      { return nil }
func (s *silentReporter) PublishProgress(context.Context, int, int) error       { return nil }
func (s *silentReporter) PublishResult(context.Context, *pipeline.Result) error { return nil }
func (s *silentReporter) PublishFailure(_ context.Context, kind pipeline.FailureKind, _ string) error {
	s.failures = append(s.failures, kind)
	return nil
}
func (s *silentReporter) RetractProgress(context.Context) error { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppName:               "relay-test",
		LogLevel:              "error",
		HTTPTimeout:           5 * time.Second,
		RedditMode:            "public",
		RedditUserAgent:       "relay-test-agent",
		RedditRequestInterval: time.Millisecond,
		HistoryType:           "bbolt",
		BBoltPath:             filepath.Join(t.TempDir(), "history.db"),
		DefaultQuality:        "superior",
	}
}

func TestRelayRecordsRunInHistory(t *testing.T) {
	ctx := context.Background()
	relay, err := NewRelay(ctx, testConfig(t), nil)
	if err != nil {
		t.Fatalf("NewRelay: %v", err)
	}
	defer relay.Close()

	// An unsupported domain fails during resolution, before any upstream
	// call, so the run completes without network access.
	rep := &silentReporter{}
	run, err := relay.Submit(ctx, SubmitOptions{URL: "https://example.org/post/1"}, rep)
	if err == nil {
		t.Fatalf("expected unsupported-platform failure")
	}
	if run.FailureKind != pipeline.FailureUnsupportedPlatform {
		t.Fatalf("FailureKind = %s", run.FailureKind)
	}

	entries, err := relay.History(5)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Status != string(pipeline.StatusFailed) {
		t.Fatalf("Status = %s, want failed", e.Status)
	}
	if e.FailureKind != string(pipeline.FailureUnsupportedPlatform) {
		t.Fatalf("FailureKind = %s", e.FailureKind)
	}
	if e.SourceURL != "https://example.org/post/1" {
		t.Fatalf("SourceURL = %s", e.SourceURL)
	}
	if e.RequestID == "" {
		t.Fatalf("history entry missing request id")
	}
}

func TestRelayHistoryDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.HistoryType = "none"

	relay, err := NewRelay(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewRelay: %v", err)
	}
	defer relay.Close()

	entries, err := relay.History(5)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries with history disabled, got %d", len(entries))
	}
}

func TestRelayRejectsUnknownQuality(t *testing.T) {
	relay, err := NewRelay(context.Background(), testConfig(t), nil)
	if err != nil {
		t.Fatalf("NewRelay: %v", err)
	}
	defer relay.Close()

	_, err = relay.Submit(context.Background(), SubmitOptions{
		URL:     "https://reddit.com/r/x/comments/abc/post",
		Quality: "medium",
	}, &silentReporter{})
	if err == nil {
		t.Fatalf("expected error for unknown quality level")
	}
}
