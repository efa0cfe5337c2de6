// Package scraping implements the HTML changelog-page source plugin: fetch
// a page, walk heading-like elements, detect a date near each heading, and
// collect adjacent text as content until the next heading.
package scraping

import (
	"context"
	"crypto/md5"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/plugin"
	"catchup-feed/internal/resilience/circuitbreaker"
	"catchup-feed/internal/resilience/retry"
)

// Config declares the CSS selectors and date layout used to pull structured
// items out of one vendor's changelog page. Instances are typically loaded
// from a YAML source-registry file (see catchup-feed/internal/plugin/registry.go).
type Config struct {
	PageURL        string   `yaml:"page_url"`
	HeadingSelector string  `yaml:"heading_selector"` // e.g. "h1, h2, h3, article, section"
	DateLayouts    []string `yaml:"date_layouts"`
}

var datePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\w+ \d{1,2}, \d{4})\b`)

// Plugin is one configured HTML scraping source.
type Plugin struct {
	info     plugin.Info
	cfg      Config
	breaker  *circuitbreaker.CircuitBreaker
	retryCfg retry.Config
	client   *http.Client
}

// New builds a scraping plugin for one vendor's changelog page.
func New(name, displayName, vendor string, cfg Config, techStack []string) *Plugin {
	return &Plugin{
		info: plugin.Info{
			Name:               name,
			DisplayName:        displayName,
			Vendor:             vendor,
			Description:        fmt.Sprintf("Changelog scraper for %s", displayName),
			SourceType:         plugin.SourceTypeScraping,
			Version:            "1.0.0",
			SupportedTechStack: techStack,
		},
		cfg:      cfg,
		breaker:  circuitbreaker.New(circuitbreaker.DefaultConfig("scraper-" + name)),
		retryCfg: retry.WebScraperConfig(),
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *Plugin) Info() plugin.Info { return p.info }

func (p *Plugin) ValidateConfig() error {
	if p.cfg.PageURL == "" {
		return &plugin.ConfigError{PluginName: p.info.Name, Message: "page URL is empty"}
	}
	if p.cfg.HeadingSelector == "" {
		return &plugin.ConfigError{PluginName: p.info.Name, Message: "heading selector is empty"}
	}
	return nil
}

func (p *Plugin) HealthCheck(ctx context.Context) bool {
	if err := p.ValidateConfig(); err != nil {
		return false
	}
	hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(hctx, http.MethodHead, p.cfg.PageURL, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

func (p *Plugin) FetchUpdates(ctx context.Context, since *time.Time) ([]entity.RawItem, error) {
	doc, err := p.fetchDocument(ctx)
	if err != nil {
		return nil, &plugin.FetchError{PluginName: p.info.Name, Cause: err}
	}

	seen := make(map[string]bool)
	var items []entity.RawItem

	headings := doc.Find(p.cfg.HeadingSelector)
	headings.Each(func(i int, heading *goquery.Selection) {
		title := strings.TrimSpace(heading.Text())
		if title == "" {
			return
		}

		dateStr, published := p.extractDate(heading)
		content := p.collectContentUntilNextHeading(heading)

		externalID := fmt.Sprintf("%s-%s", strings.ToLower(p.info.Vendor), shortHash(title+"|"+dateStr))
		if seen[externalID] {
			return
		}
		seen[externalID] = true

		if since != nil && published != nil && published.Before(*since) {
			return
		}

		items = append(items, entity.RawItem{
			ExternalID:  externalID,
			SourceURL:   p.cfg.PageURL,
			Title:       title,
			Content:     content,
			PublishedAt: published,
			Vendor:      p.info.Vendor,
			Categories:  nil,
			Metadata:    map[string]string{"source_plugin": p.info.Name},
		})
	})

	return items, nil
}

func (p *Plugin) fetchDocument(ctx context.Context) (*goquery.Document, error) {
	var doc *goquery.Document
	err := retry.WithBackoff(ctx, p.retryCfg, func() error {
		result, cbErr := p.breaker.Execute(func() (interface{}, error) {
			req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.PageURL, nil)
			if reqErr != nil {
				return nil, reqErr
			}
			resp, doErr := p.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: resp.Status}
			}
			return goquery.NewDocumentFromReader(resp.Body)
		})
		if cbErr != nil {
			return cbErr
		}
		doc = result.(*goquery.Document)
		return nil
	})
	return doc, err
}

// extractDate looks for a date pattern in the heading itself, then its
// immediate siblings, following original_source's heuristic of scanning
// near the heading rather than requiring a dedicated date element.
func (p *Plugin) extractDate(heading *goquery.Selection) (string, *time.Time) {
	candidates := []string{heading.Text()}
	heading.Next().Each(func(i int, s *goquery.Selection) {
		if i < 2 {
			candidates = append(candidates, s.Text())
		}
	})

	for _, text := range candidates {
		match := datePattern.FindString(text)
		if match == "" {
			continue
		}
		for _, layout := range p.layouts() {
			if t, err := time.Parse(layout, match); err == nil {
				return match, &t
			}
		}
		return match, nil
	}
	return "", nil
}

func (p *Plugin) layouts() []string {
	if len(p.cfg.DateLayouts) > 0 {
		return p.cfg.DateLayouts
	}
	return []string{"2006-01-02", "January 2, 2006"}
}

// collectContentUntilNextHeading walks sibling nodes after heading,
// gathering text from paragraphs, list items and divs until another
// heading-like element is reached.
func (p *Plugin) collectContentUntilNextHeading(heading *goquery.Selection) string {
	var parts []string
	sib := heading.Next()
	for sib.Length() > 0 {
		if sib.Is(p.cfg.HeadingSelector) {
			break
		}
		text := strings.TrimSpace(sib.Text())
		if text != "" {
			parts = append(parts, text)
		}
		sib = sib.Next()
	}
	return strings.Join(parts, "\n")
}

func shortHash(s string) string {
	sum := md5.Sum([]byte(s))
	return fmt.Sprintf("%x", sum)[:12]
}
