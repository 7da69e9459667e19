package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
)

// FeedProducer pulls industry news candidates from an RSS/Atom feed.
type FeedProducer struct {
	name    string
	feedURL string
	sector  string
	max     int
	parser  *gofeed.Parser
}

// NewFeedProducer creates a producer for one feed. Items it yields are
// tagged with the configured sector; maxItems caps the batch (0 = no cap).
func NewFeedProducer(name, feedURL, sector string, maxItems int) *FeedProducer {
	return &FeedProducer{
		name:    name,
		feedURL: feedURL,
		sector:  sector,
		max:     maxItems,
		parser:  gofeed.NewParser(),
	}
}

// Name identifies the source in reports and logs.
func (p *FeedProducer) Name() string {
	return p.name
}

// Fetch retrieves and parses the feed, returning loosely-shaped news
// candidates. Dates are passed through as raw strings; the pipeline's
// normalizer owns parsing and rejection.
func (p *FeedProducer) Fetch(ctx context.Context) ([]RawRecord, error) {
	feed, err := p.parser.ParseURLWithContext(p.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", p.feedURL, err)
	}

	count := len(feed.Items)
	if p.max > 0 && count > p.max {
		count = p.max
	}

	records := make([]RawRecord, 0, count)
	for _, item := range feed.Items[:count] {
		published := item.Published
		// Prefer the already-parsed timestamp when gofeed produced one.
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.Format(time.RFC3339)
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.Format(time.RFC3339)
		}

		records = append(records, RawRecord{
			Kind:           KindNews,
			Source:         p.name,
			ID:             item.GUID,
			URL:            item.Link,
			Title:          item.Title,
			Summary:        item.Description,
			Sector:         p.sector,
			RawPublishedAt: published,
		})
	}
	return records, nil
}
