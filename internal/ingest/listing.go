package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Default CSS selectors for grant listing pages. Sources with bespoke
// markup override the entry selector through their Source config.
const (
	defaultEntrySelector = "article, .grant-listing, li.opportunity"
	titleSelector        = "h2, h3, .title"
	amountSelector       = ".amount, .funding"
	deadlineSelector     = ".deadline, time"
	tagSelector          = ".tag, .category"
	locationSelector     = ".location, .region"
	orgTypeSelector      = ".eligibility li, .org-type"
)

// ListingProducer scrapes grant candidates from an HTML listing page with a
// fixed, selector-driven shape. It does structural extraction only; any
// AI-assisted discovery happens upstream and reaches the pipeline as
// pre-shaped records from other producers.
type ListingProducer struct {
	name     string
	pageURL  string
	selector string
	max      int
	client   *http.Client
}

// NewListingProducer creates a producer for one listing page. selector
// picks one grant entry; empty uses the default. client may be nil.
func NewListingProducer(name, pageURL, selector string, maxItems int, client *http.Client) *ListingProducer {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if selector == "" {
		selector = defaultEntrySelector
	}
	return &ListingProducer{
		name:     name,
		pageURL:  pageURL,
		selector: selector,
		max:      maxItems,
		client:   client,
	}
}

// Name identifies the source in reports and logs.
func (p *ListingProducer) Name() string {
	return p.name
}

// Fetch downloads the listing page and extracts one raw candidate per
// entry. Field values are passed through untrimmed and unparsed; the
// pipeline's normalizer decides what is well-formed.
func (p *ListingProducer) Fetch(ctx context.Context) ([]RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing %s: %w", p.pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing %s returned status %d", p.pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing %s: %w", p.pageURL, err)
	}

	var records []RawRecord
	doc.Find(p.selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if p.max > 0 && len(records) >= p.max {
			return false
		}
		records = append(records, p.extract(sel))
		return true
	})
	return records, nil
}

// extract shapes one listing entry into a raw record.
func (p *ListingProducer) extract(sel *goquery.Selection) RawRecord {
	link, _ := sel.Find("a").First().Attr("href")

	return RawRecord{
		Kind:             KindGrant,
		Source:           p.name,
		URL:              p.absoluteURL(link),
		Title:            strings.TrimSpace(sel.Find(titleSelector).First().Text()),
		Summary:          strings.TrimSpace(sel.Find("p").First().Text()),
		RawAmount:        strings.TrimSpace(sel.Find(amountSelector).First().Text()),
		RawDeadline:      deadlineText(sel),
		IndustryTags:     textAll(sel, tagSelector),
		Location:         strings.TrimSpace(sel.Find(locationSelector).First().Text()),
		EligibleOrgTypes: textAll(sel, orgTypeSelector),
	}
}

// deadlineText prefers a machine-readable datetime attribute over the
// element's display text.
func deadlineText(sel *goquery.Selection) string {
	node := sel.Find(deadlineSelector).First()
	if dt, ok := node.Attr("datetime"); ok {
		return dt
	}
	return strings.TrimSpace(node.Text())
}

func textAll(sel *goquery.Selection, selector string) []string {
	var out []string
	sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

// absoluteURL resolves a possibly relative listing link against the page URL.
func (p *ListingProducer) absoluteURL(link string) string {
	if link == "" {
		return ""
	}
	base, err := url.Parse(p.pageURL)
	if err != nil {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return base.ResolveReference(ref).String()
}
