package match

import (
	"sort"

	"github.com/fundscope/fundscope/internal/catalog"
)

// ScoredGrant pairs a grant with its derived scores for one request.
// The scores are computed at read time and never written back to the store.
type ScoredGrant struct {
	*catalog.Grant
	MatchScore         float64 `json:"match_score"`
	SuccessProbability float64 `json:"success_probability"`
}

// ScoredNews pairs a news item with its relevance score for one request.
type ScoredNews struct {
	*catalog.NewsItem
	RelevanceScore float64 `json:"relevance_score"`
}

// Page is an offset/limit page request over a ranked snapshot.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// PageMeta describes the page that was returned.
type PageMeta struct {
	Total  int `json:"total"`  // Eligible records in the snapshot
	Limit  int `json:"limit"`  // Page size actually applied
	Offset int `json:"offset"` // Offset actually applied
}

// Pagination bounds, mirroring the API defaults.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// RankGrants stable-sorts scored grants into the canonical result order:
// match score descending, ties broken by soonest non-nil deadline, then by
// ID ascending. The ID tie-break makes the order a total order, so
// re-ranking the same snapshot always yields the same sequence and
// pagination is reproducible.
func RankGrants(items []ScoredGrant) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		// Soonest deadline first; nil deadlines sort after any real one.
		switch {
		case a.Deadline != nil && b.Deadline == nil:
			return true
		case a.Deadline == nil && b.Deadline != nil:
			return false
		case a.Deadline != nil && b.Deadline != nil && !a.Deadline.Equal(*b.Deadline):
			return a.Deadline.Before(*b.Deadline)
		}
		return a.ID < b.ID
	})
}

// RankNews stable-sorts scored news by relevance descending, with the ID
// tie-break for determinism.
func RankNews(items []ScoredNews) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].RelevanceScore != items[j].RelevanceScore {
			return items[i].RelevanceScore > items[j].RelevanceScore
		}
		return items[i].ID < items[j].ID
	})
}

// Paginate slices a ranked sequence according to the page request and
// returns the slice plus page metadata. Out-of-range offsets yield an empty
// page, not an error; limits are clamped to [1, MaxPageLimit].
func Paginate(items []ScoredGrant, page Page) ([]ScoredGrant, PageMeta) {
	limit := page.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}

	meta := PageMeta{Total: len(items), Limit: limit, Offset: offset}
	if offset >= len(items) {
		return []ScoredGrant{}, meta
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end], meta
}
