// Package entity holds the core data types shared across BrainStream's
// collection, topology, feed and co-occurrence subsystems.
package entity

import "time"

// RawItem is one unprocessed update as returned by a source plugin. It is
// transient: it lives only for the duration of a single collection run.
type RawItem struct {
	ExternalID  string
	SourceURL   string
	Title       string
	Content     string
	PublishedAt *time.Time
	Vendor      string
	Categories  []string
	Metadata    map[string]string
}

// ProcessedItem is a RawItem after summarization, as stored in the
// topology's vector collection.
type ProcessedItem struct {
	ExternalID      string
	SourceURL       string
	Title           string
	Content         string
	PublishedAt     *time.Time
	Vendor          string
	Categories      []string
	Metadata        map[string]string

	Summary         string
	Tags            []string
	IsPrimarySource bool
	TechDomain      string
	SourcePlugin    string
	CollectedAt     time.Time
	ClusterID       int
}

// NoiseClusterID is the sentinel cluster id for items not assigned to any
// cluster by the most recent density-based clustering pass.
const NoiseClusterID = -1

// Embedding is the fixed-dimension real vector attached to a ProcessedItem.
type Embedding struct {
	ExternalID string
	Vector     []float32
}
