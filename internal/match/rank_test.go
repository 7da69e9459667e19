package match

import (
	"testing"
	"time"

	"github.com/fundscope/fundscope/internal/catalog"
)

func scoredGrant(id string, score float64, deadline *time.Time) ScoredGrant {
	return ScoredGrant{
		Grant:      &catalog.Grant{ID: id, Deadline: deadline},
		MatchScore: score,
	}
}

// TestRankGrants_Order verifies the canonical ordering: score descending,
// then soonest deadline, then ID.
func TestRankGrants_Order(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	soon := timePtr(now.AddDate(0, 0, 10))
	later := timePtr(now.AddDate(0, 0, 60))

	items := []ScoredGrant{
		scoredGrant("e", 0.5, nil),
		scoredGrant("d", 0.5, later),
		scoredGrant("a", 0.9, nil),
		scoredGrant("c", 0.5, soon),
		scoredGrant("b", 0.5, soon),
	}

	RankGrants(items)

	want := []string{"a", "b", "c", "d", "e"}
	for i, id := range want {
		if items[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, items[i].ID)
		}
	}
}

// TestRankGrants_Deterministic verifies that re-ranking a shuffled copy of
// the same snapshot always yields the same sequence.
func TestRankGrants_Deterministic(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	build := func(order []int) []ScoredGrant {
		all := []ScoredGrant{
			scoredGrant("g1", 0.7, timePtr(now.AddDate(0, 0, 5))),
			scoredGrant("g2", 0.7, timePtr(now.AddDate(0, 0, 5))),
			scoredGrant("g3", 0.7, nil),
			scoredGrant("g4", 0.3, nil),
			scoredGrant("g5", 0.3, nil),
		}
		out := make([]ScoredGrant, 0, len(all))
		for _, i := range order {
			out = append(out, all[i])
		}
		return out
	}

	first := build([]int{0, 1, 2, 3, 4})
	second := build([]int{4, 2, 0, 3, 1})
	RankGrants(first)
	RankGrants(second)

	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("position %d differs between runs: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

// TestRankNews_Order verifies relevance-descending order with the ID
// tie-break.
func TestRankNews_Order(t *testing.T) {
	items := []ScoredNews{
		{NewsItem: &catalog.NewsItem{ID: "n3"}, RelevanceScore: 0.4},
		{NewsItem: &catalog.NewsItem{ID: "n2"}, RelevanceScore: 0.4},
		{NewsItem: &catalog.NewsItem{ID: "n1"}, RelevanceScore: 0.9},
	}

	RankNews(items)

	want := []string{"n1", "n2", "n3"}
	for i, id := range want {
		if items[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, items[i].ID)
		}
	}
}

// TestPaginate tests page slicing and bound clamping.
func TestPaginate(t *testing.T) {
	items := make([]ScoredGrant, 25)
	for i := range items {
		items[i] = scoredGrant(string(rune('a'+i)), 1.0-float64(i)*0.01, nil)
	}

	tests := []struct {
		name       string
		page       Page
		wantLen    int
		wantFirst  string
		wantLimit  int
		wantOffset int
	}{
		{
			name:       "defaults applied",
			page:       Page{},
			wantLen:    20,
			wantFirst:  "a",
			wantLimit:  DefaultPageLimit,
			wantOffset: 0,
		},
		{
			name:       "second page",
			page:       Page{Limit: 10, Offset: 10},
			wantLen:    10,
			wantFirst:  "k",
			wantLimit:  10,
			wantOffset: 10,
		},
		{
			name:       "partial final page",
			page:       Page{Limit: 10, Offset: 20},
			wantLen:    5,
			wantFirst:  "u",
			wantLimit:  10,
			wantOffset: 20,
		},
		{
			name:       "offset past the end yields empty page",
			page:       Page{Limit: 10, Offset: 100},
			wantLen:    0,
			wantLimit:  10,
			wantOffset: 100,
		},
		{
			name:       "limit clamped to maximum",
			page:       Page{Limit: 1000},
			wantLen:    25,
			wantFirst:  "a",
			wantLimit:  MaxPageLimit,
			wantOffset: 0,
		},
		{
			name:       "negative offset clamped to zero",
			page:       Page{Limit: 5, Offset: -3},
			wantLen:    5,
			wantFirst:  "a",
			wantLimit:  5,
			wantOffset: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, meta := Paginate(items, tt.page)
			if len(got) != tt.wantLen {
				t.Fatalf("expected %d items, got %d", tt.wantLen, len(got))
			}
			if tt.wantLen > 0 && got[0].ID != tt.wantFirst {
				t.Errorf("expected first item %s, got %s", tt.wantFirst, got[0].ID)
			}
			if meta.Total != len(items) {
				t.Errorf("expected total %d, got %d", len(items), meta.Total)
			}
			if meta.Limit != tt.wantLimit {
				t.Errorf("expected limit %d, got %d", tt.wantLimit, meta.Limit)
			}
			if meta.Offset != tt.wantOffset {
				t.Errorf("expected offset %d, got %d", tt.wantOffset, meta.Offset)
			}
		})
	}
}

// TestPaginate_StableAcrossPages verifies that consecutive pages over the
// same ranked snapshot never overlap or skip.
func TestPaginate_StableAcrossPages(t *testing.T) {
	items := make([]ScoredGrant, 17)
	for i := range items {
		items[i] = scoredGrant(string(rune('a'+i)), 0.5, nil)
	}
	RankGrants(items)

	seen := make(map[string]bool)
	for offset := 0; offset < len(items); offset += 5 {
		page, _ := Paginate(items, Page{Limit: 5, Offset: offset})
		for _, it := range page {
			if seen[it.ID] {
				t.Fatalf("item %s appeared on two pages", it.ID)
			}
			seen[it.ID] = true
		}
	}
	if len(seen) != len(items) {
		t.Errorf("expected %d distinct items across pages, got %d", len(items), len(seen))
	}
}
