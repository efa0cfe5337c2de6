// Package cooccurrence mines tag co-occurrence against a user's declared
// technology stack to surface adjacent technologies worth watching.
package cooccurrence

import (
	"sort"
	"strings"

	"catchup-feed/internal/domain/entity"
)

// TrendingTechnology is one tag found co-occurring with the declared
// stack, with enough evidence to act on.
type TrendingTechnology struct {
	Name              string
	Count             int
	RelatedTo         []string
	SampleArticleIDs  []string
}

// Analyzer mines ProcessedItems for technologies outside a declared stack
// that frequently appear alongside it.
type Analyzer struct {
	techStack  map[string]bool
	maxResults int
}

// New builds an Analyzer over the user's declared stack (case-insensitive).
// maxResults defaults to 10 when <= 0.
func New(techStack []string, maxResults int) *Analyzer {
	if maxResults <= 0 {
		maxResults = 10
	}
	set := make(map[string]bool, len(techStack))
	for _, t := range techStack {
		set[normalizeTag(t)] = true
	}
	return &Analyzer{techStack: set, maxResults: maxResults}
}

// Analyze returns the top technologies (by co-occurrence count, filtered to
// count >= 2) found alongside the declared stack across items.
func (a *Analyzer) Analyze(items []entity.ProcessedItem) []TrendingTechnology {
	type accumulator struct {
		count     int
		relatedTo map[string]bool
		samples   []string
	}
	acc := make(map[string]*accumulator)

	for _, item := range items {
		normalized := make(map[string]bool, len(item.Tags))
		for _, t := range item.Tags {
			normalized[normalizeTag(t)] = true
		}

		var stackHits []string
		for t := range normalized {
			if a.techStack[t] {
				stackHits = append(stackHits, t)
			}
		}
		if len(stackHits) == 0 {
			continue
		}

		for t := range normalized {
			if a.techStack[t] {
				continue
			}
			entry, ok := acc[t]
			if !ok {
				entry = &accumulator{relatedTo: make(map[string]bool)}
				acc[t] = entry
			}
			entry.count++
			for _, hit := range stackHits {
				entry.relatedTo[hit] = true
			}
			if len(entry.samples) < 3 {
				entry.samples = append(entry.samples, item.ExternalID)
			}
		}
	}

	var out []TrendingTechnology
	for name, entry := range acc {
		if entry.count < 2 {
			continue
		}
		related := make([]string, 0, len(entry.relatedTo))
		for r := range entry.relatedTo {
			related = append(related, r)
		}
		sort.Strings(related)
		out = append(out, TrendingTechnology{
			Name:             name,
			Count:            entry.count,
			RelatedTo:        related,
			SampleArticleIDs: entry.samples,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Name < out[j].Name
		}
		return out[i].Count > out[j].Count
	})

	if len(out) > a.maxResults {
		out = out[:a.maxResults]
	}
	return out
}

// normalizeTag lowercases a tag, keeps the segment after the last ':' for
// structured tags (e.g. "category:aws" -> "aws"), and keeps the segment
// before the first ',' for multi-value tags, matching original_source's
// normalization.
func normalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if idx := strings.LastIndex(tag, ":"); idx >= 0 {
		tag = strings.TrimSpace(tag[idx+1:])
	}
	if idx := strings.Index(tag, ","); idx >= 0 {
		tag = strings.TrimSpace(tag[:idx])
	}
	return tag
}
