// Package ingest implements the catalog refresh pipeline: it pulls
// loosely-validated candidate records from external producers, normalizes
// them at the boundary, deduplicates against the existing catalog, applies
// the retention policy, and reports a summary.
package ingest

import (
	"context"
)

// Kind discriminates the two catalog record variants a producer can yield.
type Kind string

const (
	// KindGrant marks a funding opportunity candidate.
	KindGrant Kind = "grant"

	// KindNews marks an industry news candidate.
	KindNews Kind = "news"
)

// RawRecord is an untrusted, unnormalized candidate record as yielded by a
// producer. String fields hold whatever the source supplied; the pipeline
// validates and normalizes them before anything reaches the catalog.
type RawRecord struct {
	Kind   Kind
	Source string

	ID    string // Source-assigned identifier, may be empty
	URL   string // Canonical URL, dedup key when present
	Title string

	Summary string

	// Grant fields.
	RawAmount        string // "50000", "25000-500000", "$1.2M" etc.
	RawDeadline      string // Date in one of the accepted layouts
	IndustryTags     []string
	Location         string
	EligibleOrgTypes []string
	Confidence       *float64 // Producer quality hint, already numeric
	AcceptanceRate   *float64

	// News fields.
	Sector         string
	RawPublishedAt string
}

// Producer yields batches of candidate records from one external source.
// Producers do no validation beyond shaping fields into RawRecord; the
// pipeline owns validation and normalization.
type Producer interface {
	// Name identifies the source in reports and logs.
	Name() string

	// Fetch retrieves the current candidate batch. A failing producer
	// contributes zero records to the refresh; it never aborts the batch
	// as a whole.
	Fetch(ctx context.Context) ([]RawRecord, error)
}

// Source configures one producer in the registry.
type Source struct {
	Name    string `koanf:"name"`
	Kind    string `koanf:"kind"` // "rss" or "listing"
	URL     string `koanf:"url"`
	Enabled bool   `koanf:"enabled"`

	// Sector applies to rss sources: the sector their items belong to.
	Sector string `koanf:"sector"`

	// Selector applies to listing sources: the CSS selector for one
	// grant entry on the page.
	Selector string `koanf:"selector"`

	// MaxItems caps the batch size per fetch. Zero means no cap.
	MaxItems int `koanf:"max_items"`
}
