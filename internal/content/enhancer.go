// Package content enhances a source plugin's raw content with full
// article text when it looks too short to summarize well. It never fails:
// any error falls back silently to the original content, same posture as
// the teacher's content fetcher.
package content

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// MinContentBytes is the threshold below which enhancement is attempted.
const MinContentBytes = 280

// Enhancer fetches and extracts readable article text for items whose raw
// content is short.
type Enhancer struct {
	client *http.Client
	logger *slog.Logger
}

// New builds an Enhancer with a bounded-timeout HTTP client.
func New(logger *slog.Logger) *Enhancer {
	return &Enhancer{
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Enhance returns improved content for sourceURL, or the original content
// unchanged if fetching/extraction fails or isn't warranted.
func (e *Enhancer) Enhance(ctx context.Context, sourceURL, original string) string {
	if len(original) >= MinContentBytes {
		return original
	}
	parsed, err := url.Parse(sourceURL)
	if err != nil || parsed.Scheme == "" {
		return original
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return original
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return original
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return original
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil || article.TextContent == "" {
		if e.logger != nil {
			e.logger.Debug("content enhancement skipped", slog.String("url", sourceURL), slog.Any("error", err))
		}
		return original
	}
	return article.TextContent
}
