package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fundscope/fundscope/internal/catalog"
)

// Validation errors for incoming records. All of them mark a record as
// malformed: the record is skipped and counted, never fatal to the batch.
var (
	ErrMissingIdentity  = errors.New("record has neither url nor id")
	ErrMissingTitle     = errors.New("record has no title")
	ErrUnparsableDate   = errors.New("date field could not be parsed")
	ErrUnparsableAmount = errors.New("amount field could not be parsed")
	ErrUnknownKind      = errors.New("record kind is not grant or news")
)

// Date layouts accepted from producers, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// Metrics tracks counts for one refresh run.
// All operations are thread-safe using atomic counters.
type Metrics struct {
	fetched int64 // Raw records received from producers
	saved   int64 // Newly inserted records
	updated int64 // Existing records overwritten in place
	skipped int64 // Malformed records dropped at the boundary
	purged  int64 // Records removed by the retention sweep
}

// NewMetrics creates a zeroed Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Fetched returns the number of raw records received.
func (m *Metrics) Fetched() int64 { return atomic.LoadInt64(&m.fetched) }

// Saved returns the number of newly inserted records.
func (m *Metrics) Saved() int64 { return atomic.LoadInt64(&m.saved) }

// Updated returns the number of records overwritten in place.
func (m *Metrics) Updated() int64 { return atomic.LoadInt64(&m.updated) }

// Skipped returns the number of malformed records dropped.
func (m *Metrics) Skipped() int64 { return atomic.LoadInt64(&m.skipped) }

// Purged returns the number of records removed by retention.
func (m *Metrics) Purged() int64 { return atomic.LoadInt64(&m.purged) }

func (m *Metrics) incFetched(n int64) { atomic.AddInt64(&m.fetched, n) }
func (m *Metrics) incSaved()          { atomic.AddInt64(&m.saved, 1) }
func (m *Metrics) incUpdated()        { atomic.AddInt64(&m.updated, 1) }
func (m *Metrics) incSkipped()        { atomic.AddInt64(&m.skipped, 1) }
func (m *Metrics) incPurged(n int64)  { atomic.AddInt64(&m.purged, n) }

// normalized is the outcome of validating one raw record: exactly one of
// grant or news is set.
type normalized struct {
	grant *catalog.Grant
	news  *catalog.NewsItem
}

func (n normalized) dedupKey() string {
	if n.grant != nil {
		return n.grant.DedupKey()
	}
	return n.news.DedupKey()
}

// Normalize validates a raw record and shapes it into a catalog record.
// Loosely-typed producer data stops here: anything non-conforming is
// rejected with one of the package's validation errors.
func Normalize(raw RawRecord, now time.Time) (normalized, error) {
	if raw.URL == "" && raw.ID == "" {
		return normalized{}, ErrMissingIdentity
	}
	if strings.TrimSpace(raw.Title) == "" {
		return normalized{}, ErrMissingTitle
	}

	id := raw.ID
	if id == "" {
		// Stable fallback identity derived from the URL.
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(raw.URL)).String()
	}

	switch raw.Kind {
	case KindGrant:
		return normalizeGrant(raw, id, now)
	case KindNews:
		return normalizeNews(raw, id, now)
	default:
		return normalized{}, fmt.Errorf("%w: %q", ErrUnknownKind, raw.Kind)
	}
}

func normalizeGrant(raw RawRecord, id string, now time.Time) (normalized, error) {
	amountMin, amountMax, err := parseAmount(raw.RawAmount)
	if err != nil {
		return normalized{}, err
	}

	var deadline *time.Time
	if strings.TrimSpace(raw.RawDeadline) != "" {
		t, err := parseDate(raw.RawDeadline)
		if err != nil {
			return normalized{}, err
		}
		deadline = &t
	}

	g := &catalog.Grant{
		ID:               id,
		Source:           raw.Source,
		URL:              raw.URL,
		Title:            strings.TrimSpace(raw.Title),
		Summary:          strings.TrimSpace(raw.Summary),
		AmountMin:        amountMin,
		AmountMax:        amountMax,
		Deadline:         deadline,
		IndustryTags:     trimAll(raw.IndustryTags),
		Location:         strings.TrimSpace(raw.Location),
		EligibleOrgTypes: trimAll(raw.EligibleOrgTypes),
		Confidence:       raw.Confidence,
		AcceptanceRate:   raw.AcceptanceRate,
		DiscoveredAt:     now,
		UpdatedAt:        now,
	}
	return normalized{grant: g}, nil
}

func normalizeNews(raw RawRecord, id string, now time.Time) (normalized, error) {
	var published *time.Time
	if strings.TrimSpace(raw.RawPublishedAt) != "" {
		t, err := parseDate(raw.RawPublishedAt)
		if err != nil {
			return normalized{}, err
		}
		published = &t
	}

	n := &catalog.NewsItem{
		ID:           id,
		URL:          raw.URL,
		Source:       raw.Source,
		Title:        strings.TrimSpace(raw.Title),
		Sector:       strings.TrimSpace(raw.Sector),
		PublishedAt:  published,
		DiscoveredAt: now,
	}
	return normalized{news: n}, nil
}

// parseDate tries each accepted layout in order.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsableDate, s)
}

// parseAmount parses a producer amount string into a (min, max) pair.
// Accepts a single value ("50000") or a dash-separated range
// ("25000-500000"), with optional currency symbols and thousands
// separators. An empty amount is valid and yields (0, 0): no information.
func parseAmount(s string) (float64, float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, nil
	}

	parts := strings.SplitN(s, "-", 2)
	lo, err := parseAmountValue(parts[0])
	if err != nil {
		return 0, 0, err
	}
	hi := lo
	if len(parts) == 2 {
		hi, err = parseAmountValue(parts[1])
		if err != nil {
			return 0, 0, err
		}
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo, hi, nil
}

func parseAmountValue(s string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', ',', ' ':
			return -1
		}
		return r
	}, strings.TrimSpace(s))

	// Allow "1.2M" / "500k" style suffixes seen in scraped listings.
	multiplier := 1.0
	switch {
	case strings.HasSuffix(cleaned, "M"), strings.HasSuffix(cleaned, "m"):
		multiplier = 1_000_000
		cleaned = cleaned[:len(cleaned)-1]
	case strings.HasSuffix(cleaned, "K"), strings.HasSuffix(cleaned, "k"):
		multiplier = 1_000
		cleaned = cleaned[:len(cleaned)-1]
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnparsableAmount, s)
	}
	return v * multiplier, nil
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
