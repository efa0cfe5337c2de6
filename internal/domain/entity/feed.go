package entity

import "time"

// FeedItem is one entry in a generated feed page — a thin read-model
// projection of a ProcessedItem plus its distance from its cluster's
// centroid, which is only meaningful for serendipity picks (zero otherwise).
type FeedItem struct {
	ExternalID      string
	Title           string
	SourceURL       string
	Summary         string
	Tags            []string
	Vendor          string
	IsPrimarySource bool
	TechDomain      string
	PublishedAt     *time.Time
	ClusterID       int
	Serendipity     bool
}
