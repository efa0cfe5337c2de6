// Package rss implements the RSS/Atom source plugin backed by gofeed.
package rss

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/plugin"
	"catchup-feed/internal/resilience/circuitbreaker"
	"catchup-feed/internal/resilience/retry"
)

// Plugin fetches a single RSS/Atom feed URL and maps entries into RawItems.
// Entry id (falling back to link) becomes ExternalID; category/tag terms
// become Categories.
type Plugin struct {
	info     plugin.Info
	feedURL  string
	parser   *gofeed.Parser
	breaker  *circuitbreaker.CircuitBreaker
	retryCfg retry.Config
}

// New builds an RSS plugin. name is the registry key; vendor/displayName
// populate the advertised Info.
func New(name, displayName, vendor, feedURL string, techStack []string) *Plugin {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: 30 * time.Second}

	return &Plugin{
		info: plugin.Info{
			Name:               name,
			DisplayName:        displayName,
			Vendor:             vendor,
			Description:        fmt.Sprintf("RSS/Atom feed for %s", displayName),
			SourceType:         plugin.SourceTypeRSS,
			Version:            "1.0.0",
			SupportedTechStack: techStack,
		},
		feedURL:  feedURL,
		parser:   parser,
		breaker:  circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retryCfg: retry.FeedFetchConfig(),
	}
}

func (p *Plugin) Info() plugin.Info { return p.info }

func (p *Plugin) ValidateConfig() error {
	if p.feedURL == "" {
		return &plugin.ConfigError{PluginName: p.info.Name, Message: "feed URL is empty"}
	}
	return nil
}

func (p *Plugin) HealthCheck(ctx context.Context) bool {
	if err := p.ValidateConfig(); err != nil {
		return false
	}
	hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(hctx, http.MethodHead, p.feedURL, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

func (p *Plugin) FetchUpdates(ctx context.Context, since *time.Time) ([]entity.RawItem, error) {
	var feed *gofeed.Feed

	err := retry.WithBackoff(ctx, p.retryCfg, func() error {
		result, cbErr := p.breaker.Execute(func() (interface{}, error) {
			return p.parser.ParseURLWithContext(p.feedURL, ctx)
		})
		if cbErr != nil {
			return cbErr
		}
		feed = result.(*gofeed.Feed)
		return nil
	})
	if err != nil {
		return nil, &plugin.FetchError{PluginName: p.info.Name, Cause: err}
	}

	items := make([]entity.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		published := resolvePublished(entry)
		if since != nil && published != nil && published.Before(*since) {
			continue
		}

		externalID := entry.GUID
		if externalID == "" {
			externalID = entry.Link
		}

		content := entry.Content
		if content == "" {
			content = entry.Description
		}

		items = append(items, entity.RawItem{
			ExternalID:  externalID,
			SourceURL:   entry.Link,
			Title:       entry.Title,
			Content:     content,
			PublishedAt: published,
			Vendor:      p.info.Vendor,
			Categories:  normalizeCategories(entry.Categories),
			Metadata:    map[string]string{"source_plugin": p.info.Name},
		})
	}
	return items, nil
}

func resolvePublished(entry *gofeed.Item) *time.Time {
	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed
	}
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed
	}
	now := time.Now().UTC()
	return &now
}

func normalizeCategories(cats []string) []string {
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}
