// Command feeddiag probes every built-in plugin's upstream and reports
// which feeds are healthy, slow, or broken. It duplicates buildRegistry's
// plugin list from cmd/brainstream rather than importing it, since that
// function is unexported and main packages cannot import each other.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"catchup-feed/internal/plugin"
	"catchup-feed/internal/plugin/releases"
	"catchup-feed/internal/plugin/rss"
	"catchup-feed/internal/plugin/scraping"
)

// Diagnostic is one plugin's probe result.
type Diagnostic struct {
	Name         string `json:"name"`
	Vendor       string `json:"vendor"`
	Healthy      bool   `json:"healthy"`
	ItemCount    int    `json:"item_count"`
	ErrorMessage string `json:"error_message,omitempty"`
	ResponseTime int64  `json:"response_time_ms"`
}

func main() {
	registry := buildRegistry()
	plugins := registry.All()

	log.Printf("diagnosing %d plugins...", len(plugins))

	diagnostics := make([]Diagnostic, 0, len(plugins))
	for _, p := range plugins {
		info := p.Info()
		log.Printf("probing %s (%s)", info.Name, info.Vendor)
		diagnostics = append(diagnostics, diagnosePlugin(p))
		time.Sleep(500 * time.Millisecond) // stay polite to upstreams
	}

	printReport(diagnostics)
	if err := writeJSONReport(diagnostics); err != nil {
		log.Printf("failed to write json report: %v", err)
	}
}

func diagnosePlugin(p plugin.Source) Diagnostic {
	info := p.Info()
	diag := Diagnostic{Name: info.Name, Vendor: info.Vendor}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	diag.Healthy = p.HealthCheck(ctx)
	if !diag.Healthy {
		diag.ResponseTime = time.Since(start).Milliseconds()
		diag.ErrorMessage = "health check failed"
		return diag
	}

	items, err := p.FetchUpdates(ctx, nil)
	diag.ResponseTime = time.Since(start).Milliseconds()
	if err != nil {
		diag.Healthy = false
		diag.ErrorMessage = err.Error()
		return diag
	}
	diag.ItemCount = len(items)
	return diag
}

func printReport(diagnostics []Diagnostic) {
	var healthy, broken int
	for _, d := range diagnostics {
		if d.Healthy {
			healthy++
		} else {
			broken++
		}
	}

	fmt.Printf("\n=== feed diagnostic report ===\n")
	fmt.Printf("healthy: %d   broken: %d   total: %d\n\n", healthy, broken, len(diagnostics))
	for _, d := range diagnostics {
		status := "OK"
		if !d.Healthy {
			status = "BROKEN"
		}
		fmt.Printf("%-8s %-24s %-16s items=%-4d %dms",
			status, d.Name, d.Vendor, d.ItemCount, d.ResponseTime)
		if d.ErrorMessage != "" {
			fmt.Printf("  (%s)", d.ErrorMessage)
		}
		fmt.Println()
	}
}

func writeJSONReport(diagnostics []Diagnostic) error {
	f, err := os.Create("feed_diagnostic_report.json")
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(diagnostics)
}

// buildRegistry mirrors cmd/brainstream's builtin plugin set.
func buildRegistry() *plugin.Registry {
	return plugin.NewRegistry(
		rss.New("aws-whatsnew", "AWS What's New", "AWS", "https://aws.amazon.com/about-aws/whats-new/recent/feed/",
			[]string{"aws", "cloud"}),
		rss.New("gcp-release-notes", "GCP Release Notes", "Google Cloud", "https://cloud.google.com/feeds/gcp-release-notes.xml",
			[]string{"gcp", "cloud"}),
		rss.New("openai-blog", "OpenAI Blog", "OpenAI", "https://openai.com/blog/rss.xml",
			[]string{"openai", "llm"}),
		rss.New("github-blog", "GitHub Blog", "GitHub", "https://github.blog/feed/",
			[]string{"github", "devtools"}),
		rss.New("github-changelog", "GitHub Changelog", "GitHub", "https://github.blog/changelog/feed/",
			[]string{"github", "devtools"}),
		scraping.New("anthropic-changelog", "Anthropic API Changelog", "Anthropic",
			scraping.Config{
				PageURL:         "https://docs.anthropic.com/en/release-notes/overview",
				HeadingSelector: "h2, h3",
				DateLayouts:     []string{"January 2, 2006", "2006-01-02"},
			},
			[]string{"anthropic", "claude", "llm"}),
		releases.New("github-releases", "Tracked Repository Releases", "Open Source",
			releases.DefaultRepositories, "", []string{"langchain", "terraform", "kubernetes", "docker", "fastapi", "nextjs", "vite"}),
	)
}
