// Package catalog defines the grant and news record types and the keyed
// collection they live in. The matching engine reads snapshots from here;
// the ingestion pipeline writes normalized records into it.
package catalog

import (
	"strings"
	"time"
)

// LocationNational is the location value for records with national/global
// scope. A record carrying it satisfies any location constraint.
const LocationNational = "National"

// Grant is a funding opportunity record.
//
// AmountMin and AmountMax describe the funding envelope: equal values are a
// point amount, differing values a range, and two zeros mean the producer
// supplied no amount at all.
type Grant struct {
	// ID is the stable opaque identifier assigned by the producer,
	// or generated at ingestion when the producer supplies none.
	ID string `json:"id" cbor:"id"`

	// Source is the name of the producer that discovered this record.
	Source string `json:"source" cbor:"source"`

	// URL is the canonical listing URL. It is the dedup key when present.
	URL string `json:"url" cbor:"url"`

	Title   string `json:"title" cbor:"title"`
	Summary string `json:"summary,omitempty" cbor:"summary,omitempty"`

	AmountMin float64 `json:"amount_min" cbor:"amount_min"`
	AmountMax float64 `json:"amount_max" cbor:"amount_max"`

	// Deadline is the application deadline. Nil means rolling/ongoing.
	Deadline *time.Time `json:"deadline,omitempty" cbor:"deadline,omitempty"`

	IndustryTags     []string `json:"industry_tags" cbor:"industry_tags"`
	Location         string   `json:"location" cbor:"location"`
	EligibleOrgTypes []string `json:"eligible_org_types" cbor:"eligible_org_types"`

	// Confidence is an optional producer-supplied quality hint in [0, 1].
	Confidence *float64 `json:"confidence,omitempty" cbor:"confidence,omitempty"`

	// AcceptanceRate is the historical acceptance rate for this source or
	// program, when known. Feeds the success probability estimate.
	AcceptanceRate *float64 `json:"acceptance_rate,omitempty" cbor:"acceptance_rate,omitempty"`

	DiscoveredAt time.Time `json:"discovered_at" cbor:"discovered_at"`
	UpdatedAt    time.Time `json:"updated_at" cbor:"updated_at"`
}

// DedupKey returns the key used to detect duplicates during ingestion:
// the URL when present, otherwise the ID.
func (g *Grant) DedupKey() string {
	if g.URL != "" {
		return g.URL
	}
	return g.ID
}

// HasAmount reports whether the producer supplied any funding amount.
func (g *Grant) HasAmount() bool {
	return g.AmountMin != 0 || g.AmountMax != 0
}

// IsNational reports whether the grant has national/global scope.
func (g *Grant) IsNational() bool {
	return strings.EqualFold(g.Location, LocationNational)
}

// Expired reports whether the grant's deadline has passed. Expired grants
// are excluded from active matching but retained for history.
func (g *Grant) Expired(now time.Time) bool {
	return g.Deadline != nil && g.Deadline.Before(now)
}

// NewsItem is an industry news record. Its relevance score is derived at
// read time against the requester's subscribed sectors and never persisted;
// a stored score would go stale as time passes.
type NewsItem struct {
	ID     string `json:"id" cbor:"id"`
	URL    string `json:"url" cbor:"url"`
	Source string `json:"source" cbor:"source"`

	Title  string `json:"title" cbor:"title"`
	Sector string `json:"sector" cbor:"sector"`

	// PublishedAt is the publication timestamp. Nil when the feed did not
	// supply one; such items get no recency signal.
	PublishedAt *time.Time `json:"published_at,omitempty" cbor:"published_at,omitempty"`

	DiscoveredAt time.Time `json:"discovered_at" cbor:"discovered_at"`
}

// DedupKey returns the ingestion dedup key: URL when present, otherwise ID.
func (n *NewsItem) DedupKey() string {
	if n.URL != "" {
		return n.URL
	}
	return n.ID
}
