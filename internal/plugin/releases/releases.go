// Package releases implements the versioned-repository releases source
// plugin: iterate a configured set of GitHub repositories and fetch each
// one's most recent releases via the REST API.
package releases

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/plugin"
	"catchup-feed/internal/resilience/circuitbreaker"
	"catchup-feed/internal/resilience/retry"
)

const githubAPIBase = "https://api.github.com"

// DefaultRepositories mirrors the original source's built-in watch list of
// high-signal open-source projects.
var DefaultRepositories = []string{
	"langchain-ai/langchain",
	"hashicorp/terraform",
	"kubernetes/kubernetes",
	"moby/moby",
	"fastapi/fastapi",
	"vercel/next.js",
	"vitejs/vite",
}

type release struct {
	TagName     string `json:"tag_name"`
	Name        string `json:"name"`
	HTMLURL     string `json:"html_url"`
	Body        string `json:"body"`
	Draft       bool   `json:"draft"`
	Prerelease  bool   `json:"prerelease"`
	PublishedAt string `json:"published_at"`
}

// Plugin fetches releases for a fixed list of "owner/repo" identifiers.
type Plugin struct {
	info         plugin.Info
	repos        []string
	githubToken  string
	breaker      *circuitbreaker.CircuitBreaker
	retryCfg     retry.Config
	client       *http.Client
	perRepoLimit int
}

// New builds a releases plugin over repos (owner/repo strings). githubToken
// may be empty, in which case requests are unauthenticated (rate-limited
// but functional).
func New(name, displayName, vendor string, repos []string, githubToken string, techStack []string) *Plugin {
	if len(repos) == 0 {
		repos = DefaultRepositories
	}
	return &Plugin{
		info: plugin.Info{
			Name:               name,
			DisplayName:        displayName,
			Vendor:             vendor,
			Description:        "Tracks recent releases across a fixed set of repositories",
			SourceType:         plugin.SourceTypeAPI,
			Version:            "1.0.0",
			SupportedTechStack: techStack,
		},
		repos:        repos,
		githubToken:  githubToken,
		breaker:      circuitbreaker.New(circuitbreaker.GitHubAPIConfig()),
		retryCfg:     retry.DefaultConfig(),
		client:       &http.Client{Timeout: 30 * time.Second},
		perRepoLimit: 10,
	}
}

func (p *Plugin) Info() plugin.Info { return p.info }

func (p *Plugin) ValidateConfig() error {
	if len(p.repos) == 0 {
		return &plugin.ConfigError{PluginName: p.info.Name, Message: "no repositories configured"}
	}
	return nil
}

func (p *Plugin) HealthCheck(ctx context.Context) bool {
	if err := p.ValidateConfig(); err != nil {
		return false
	}
	hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(hctx, http.MethodHead, githubAPIBase, nil)
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
	var items []entity.RawItem
	for _, repo := range p.repos {
		releases, err := p.fetchRepoReleases(ctx, repo)
		if err != nil {
			return nil, &plugin.FetchError{PluginName: p.info.Name, Cause: fmt.Errorf("%s: %w", repo, err)}
		}

		shortRepo := repo
		if idx := strings.IndexByte(repo, '/'); idx >= 0 {
			shortRepo = repo[idx+1:]
		}

		for _, rel := range releases {
			if rel.Draft {
				continue
			}
			published := parseGithubTime(rel.PublishedAt)
			if since != nil && published != nil && published.Before(*since) {
				continue
			}

			title := fmt.Sprintf("%s %s", shortRepo, rel.Name)
			if rel.Name == "" {
				title = fmt.Sprintf("%s %s", shortRepo, rel.TagName)
			}
			content := rel.Body
			if rel.Prerelease {
				content = "[pre-release] " + content
			}

			items = append(items, entity.RawItem{
				ExternalID:  fmt.Sprintf("%s-%s", repo, rel.TagName),
				SourceURL:   rel.HTMLURL,
				Title:       title,
				Content:     content,
				PublishedAt: published,
				Vendor:      p.info.Vendor,
				Categories:  []string{shortRepo},
				Metadata:    map[string]string{"source_plugin": p.info.Name, "repo": repo},
			})
		}
	}
	return items, nil
}

func (p *Plugin) fetchRepoReleases(ctx context.Context, repo string) ([]release, error) {
	var releases []release
	err := retry.WithBackoff(ctx, p.retryCfg, func() error {
		result, cbErr := p.breaker.Execute(func() (interface{}, error) {
			url := fmt.Sprintf("%s/repos/%s/releases?per_page=%d", githubAPIBase, repo, p.perRepoLimit)
			req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if reqErr != nil {
				return nil, reqErr
			}
			req.Header.Set("Accept", "application/vnd.github+json")
			if p.githubToken != "" {
				req.Header.Set("Authorization", "Bearer "+p.githubToken)
			}

			resp, doErr := p.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				return []release{}, nil
			}
			if resp.StatusCode >= 400 {
				return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: resp.Status}
			}

			var out []release
			if decErr := json.NewDecoder(resp.Body).Decode(&out); decErr != nil {
				return nil, decErr
			}
			return out, nil
		})
		if cbErr != nil {
			return cbErr
		}
		releases = result.([]release)
		return nil
	})
	return releases, err
}

func parseGithubTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
