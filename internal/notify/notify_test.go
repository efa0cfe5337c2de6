package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"catchup-feed/internal/domain/entity"
)

func testItem() entity.ProcessedItem {
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return entity.ProcessedItem{
		ExternalID:  "aws-a1b2c3",
		SourceURL:   "https://aws.amazon.com/about-aws/whats-new/2026/03/example/",
		Title:       "New Feature Launched",
		Summary:     "AWS launched a new feature today.",
		Vendor:      "AWS",
		PublishedAt: &t,
	}
}

func TestNoOp_NeverErrors(t *testing.T) {
	if err := (NoOp{}).NotifyItem(context.Background(), testItem()); err != nil {
		t.Fatalf("NoOp.NotifyItem returned %v, want nil", err)
	}
}

func TestSlack_NotifyItem_Success(t *testing.T) {
	var received slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlack(SlackConfig{WebhookURL: srv.URL, Timeout: 5 * time.Second})
	if err := s.NotifyItem(context.Background(), testItem()); err != nil {
		t.Fatalf("NotifyItem: %v", err)
	}

	if len(received.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(received.Blocks))
	}
	if received.Blocks[0].Type != "section" {
		t.Errorf("Blocks[0].Type = %q, want section", received.Blocks[0].Type)
	}
	if received.Blocks[1].Type != "context" {
		t.Errorf("Blocks[1].Type = %q, want context", received.Blocks[1].Type)
	}
}

func TestSlack_NotifyItem_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewSlack(SlackConfig{WebhookURL: srv.URL, Timeout: 5 * time.Second})
	err := s.NotifyItem(context.Background(), testItem())
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server called %d times, want 1 (client errors are not retried)", got)
	}
}

func TestSlack_NotifyItem_ServerErrorRetriesOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlack(SlackConfig{WebhookURL: srv.URL, Timeout: 5 * time.Second})
	err := s.NotifyItem(context.Background(), testItem())
	if err != nil {
		t.Fatalf("NotifyItem: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("server called %d times, want 2", got)
	}
}

func TestBuildBlockKitPayload_TruncatesLongSummary(t *testing.T) {
	item := testItem()
	long := make([]byte, maxSectionTextLength+500)
	for i := range long {
		long[i] = 'x'
	}
	item.Summary = string(long)

	payload := buildBlockKitPayload(item)
	sectionText := payload.Blocks[0].Text.Text
	if len(sectionText) > maxSectionTextLength {
		t.Errorf("section text length = %d, want <= %d", len(sectionText), maxSectionTextLength)
	}
}

func TestBuildBlockKitPayload_UnknownPublishDate(t *testing.T) {
	item := testItem()
	item.PublishedAt = nil

	payload := buildBlockKitPayload(item)
	contextText := payload.Blocks[1].Elements[0].Text
	if !contains(contextText, "unknown") {
		t.Errorf("context text = %q, want it to mention unknown publish date", contextText)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"server error", &ServerError{StatusCode: 500}, true},
		{"client error", &ClientError{StatusCode: 400}, false},
		{"rate limit error", &RateLimitError{}, false},
		{"generic error", context.DeadlineExceeded, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.want {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
