package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"catchup-feed/internal/domain/entity"
)

const (
	maxSectionTextLength = 3000
	maxContextTextLength = 2000
	maxFallbackLength    = 150
	truncationSuffix     = "..."
)

// SlackConfig configures the Slack Incoming Webhook notifier.
type SlackConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

// Slack sends one Block Kit message per newly ingested item, rate-limited
// to Slack's one-message-per-second Incoming Webhook ceiling.
type Slack struct {
	cfg        SlackConfig
	httpClient *http.Client
	limiter    *limiter
}

// NewSlack builds a Slack notifier.
func NewSlack(cfg SlackConfig) *Slack {
	return &Slack{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    newLimiter(1.0, 1),
	}
}

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string          `json:"type"`
	Text     *slackTextObj   `json:"text,omitempty"`
	Elements []slackTextObj  `json:"elements,omitempty"`
}

type slackTextObj struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func buildBlockKitPayload(item entity.ProcessedItem) slackPayload {
	fallback := fmt.Sprintf("%s - %s", item.Title, item.Vendor)
	fallback = truncateText(fallback, maxFallbackLength, truncationSuffix)

	titleLink := fmt.Sprintf("*<%s|%s>*", item.SourceURL, item.Title)
	sectionText := truncateText(fmt.Sprintf("%s\n\n%s", titleLink, item.Summary), maxSectionTextLength, truncationSuffix)

	published := "unknown"
	if item.PublishedAt != nil {
		published = item.PublishedAt.Format(time.RFC3339)
	}
	contextText := truncateText(fmt.Sprintf("%s • %s", item.Vendor, published), maxContextTextLength, truncationSuffix)

	return slackPayload{
		Text: fallback,
		Blocks: []slackBlock{
			{Type: "section", Text: &slackTextObj{Type: "mrkdwn", Text: sectionText}},
			{Type: "context", Elements: []slackTextObj{{Type: "mrkdwn", Text: contextText}}},
		},
	}
}

func (s *Slack) sendWebhookRequest(ctx context.Context, item entity.ProcessedItem) error {
	payload := buildBlockKitPayload(item)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{Message: "slack rate limit exceeded", RetryAfter: 5 * time.Second}
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &ClientError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("slack client error: %s", respBody)}
	}
	return &ServerError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("slack server error: %s", respBody)}
}

// NotifyItem implements Notifier. It applies rate limiting, then retries
// transient failures with a small fixed backoff.
func (s *Slack) NotifyItem(ctx context.Context, item entity.ProcessedItem) error {
	requestID := uuid.NewString()

	if err := s.limiter.allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	const maxAttempts = 2
	const baseDelay = 5 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := s.sendWebhookRequest(ctx, item)
		if err == nil {
			slog.Info("slack notification sent",
				slog.String("request_id", requestID),
				slog.String("external_id", item.ExternalID),
				slog.Int("attempt", attempt))
			return nil
		}
		lastErr = err

		if rl, ok := is429Error(err); ok {
			select {
			case <-time.After(rl.RetryAfter):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if !isRetryableError(err) {
			return err
		}
		if attempt < maxAttempts {
			select {
			case <-time.After(baseDelay * time.Duration(attempt)):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("slack notification failed after %d attempts: %w", maxAttempts, lastErr)
}
