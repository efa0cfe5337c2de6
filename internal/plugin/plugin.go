// Package plugin defines the source-plugin contract: the single
// abstraction every vendor source (RSS feed, scraped changelog page,
// versioned-repository release list) implements, and a registry that holds
// the fixed set of enabled plugins for one process.
package plugin

import (
	"context"
	"fmt"
	"time"

	"catchup-feed/internal/domain/entity"
)

// SourceType names the mechanism a plugin uses to reach its upstream.
type SourceType string

const (
	SourceTypeRSS      SourceType = "rss"
	SourceTypeAPI      SourceType = "api"
	SourceTypeScraping SourceType = "scraping"
)

// Info is the static metadata a plugin advertises about itself.
type Info struct {
	Name                string
	DisplayName         string
	Vendor              string
	Description         string
	SourceType          SourceType
	Version             string
	SupportedTechStack  []string
}

// Source is the contract every plugin implements. Plugins are stateless
// with respect to previous runs; since is advisory only. Plugins MUST NOT
// deduplicate, persist, or call an LLM — that is the Collector's job.
type Source interface {
	Info() Info
	FetchUpdates(ctx context.Context, since *time.Time) ([]entity.RawItem, error)
	ValidateConfig() error
	HealthCheck(ctx context.Context) bool
}

// FetchError is the typed failure a plugin's FetchUpdates raises on any
// upstream failure. It always carries the plugin name and underlying cause;
// a plugin never partially fails silently.
type FetchError struct {
	PluginName string
	Cause      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("plugin %s: fetch failed: %v", e.PluginName, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// ConfigError reports a plugin whose static configuration is invalid.
type ConfigError struct {
	PluginName string
	Message    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("plugin %s: invalid config: %s", e.PluginName, e.Message)
}

// Registry is the fixed set of enabled plugins for one process, built once
// at startup and passed explicitly to the Collector — no hidden global
// state.
type Registry struct {
	sources map[string]Source
	order   []string
}

// NewRegistry builds a Registry from an explicit, ordered list of sources.
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: make(map[string]Source, len(sources))}
	for _, s := range sources {
		name := s.Info().Name
		r.sources[name] = s
		r.order = append(r.order, name)
	}
	return r
}

// Get returns the plugin registered under name, or ErrUnknownSource.
func (r *Registry) Get(name string) (Source, error) {
	s, ok := r.sources[name]
	if !ok {
		return nil, &UnknownSourceError{Name: name}
	}
	return s, nil
}

// All returns every registered plugin in registration order.
func (r *Registry) All() []Source {
	out := make([]Source, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.sources[name])
	}
	return out
}

// UnknownSourceError is returned by Get and by Collector.CollectFrom when
// the requested plugin name was never registered.
type UnknownSourceError struct {
	Name string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown source %q", e.Name)
}
