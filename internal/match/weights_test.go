package match

import (
	"math"
	"testing"
	"time"

	"github.com/fundscope/fundscope/internal/catalog"
	"github.com/fundscope/fundscope/internal/profile"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }
func timePtr(t time.Time) *time.Time {
	return &t
}

// TestIndustryOverlap tests the industry-tag overlap fraction.
func TestIndustryOverlap(t *testing.T) {
	tests := []struct {
		name       string
		tags       []string
		industries []string
		expected   float64
	}{
		{
			name:       "no preference matches everything",
			tags:       []string{"Agriculture"},
			industries: nil,
			expected:   1.0,
		},
		{
			name:       "full overlap",
			tags:       []string{"Technology", "AI"},
			industries: []string{"Technology"},
			expected:   1.0,
		},
		{
			name:       "half overlap",
			tags:       []string{"Technology"},
			industries: []string{"Technology", "Healthcare"},
			expected:   0.5,
		},
		{
			name:       "no overlap",
			tags:       []string{"Agriculture"},
			industries: []string{"Technology", "Healthcare"},
			expected:   0.0,
		},
		{
			name:       "case-insensitive match",
			tags:       []string{"technology"},
			industries: []string{"Technology"},
			expected:   1.0,
		},
		{
			name:       "whitespace trimmed",
			tags:       []string{" Technology "},
			industries: []string{"Technology"},
			expected:   1.0,
		},
		{
			name:       "record with no tags",
			tags:       nil,
			industries: []string{"Technology"},
			expected:   0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IndustryOverlap(tt.tags, tt.industries)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestIndustryOverlap_Monotone verifies that adding a matching tag never
// decreases the overlap score.
func TestIndustryOverlap_Monotone(t *testing.T) {
	industries := []string{"Technology", "Healthcare", "Energy"}

	prev := 0.0
	tags := []string{}
	for _, add := range industries {
		tags = append(tags, add)
		score := IndustryOverlap(tags, industries)
		if score < prev {
			t.Fatalf("overlap decreased from %f to %f after adding %q", prev, score, add)
		}
		prev = score
	}
	if math.Abs(prev-1.0) > 0.001 {
		t.Errorf("expected full overlap 1.0, got %f", prev)
	}
}

// TestLocationScore tests the location exactness component.
func TestLocationScore(t *testing.T) {
	tests := []struct {
		name      string
		location  string
		locations []string
		expected  float64
	}{
		{
			name:      "no preference",
			location:  "Berlin",
			locations: nil,
			expected:  1.0,
		},
		{
			name:      "exact match",
			location:  "Berlin",
			locations: []string{"Berlin", "Hamburg"},
			expected:  1.0,
		},
		{
			name:      "case-insensitive exact match",
			location:  "berlin",
			locations: []string{"Berlin"},
			expected:  1.0,
		},
		{
			name:      "national scope partial credit",
			location:  catalog.LocationNational,
			locations: []string{"Berlin"},
			expected:  0.6,
		},
		{
			name:      "no match",
			location:  "Munich",
			locations: []string{"Berlin"},
			expected:  0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := LocationScore(tt.location, tt.locations)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestFundingFit tests the funding envelope fit curve.
func TestFundingFit(t *testing.T) {
	p := &profile.Profile{
		FundingRangeMin: floatPtr(10000),
		FundingRangeMax: floatPtr(110000),
	}

	tests := []struct {
		name     string
		grant    *catalog.Grant
		prof     *profile.Profile
		expected float64
	}{
		{
			name:     "midpoint at center of range",
			grant:    &catalog.Grant{AmountMin: 60000, AmountMax: 60000},
			prof:     p,
			expected: 1.0,
		},
		{
			name:     "midpoint at lower edge",
			grant:    &catalog.Grant{AmountMin: 10000, AmountMax: 10000},
			prof:     p,
			expected: 0.5,
		},
		{
			name:     "midpoint at upper edge",
			grant:    &catalog.Grant{AmountMin: 110000, AmountMax: 110000},
			prof:     p,
			expected: 0.5,
		},
		{
			name:     "midpoint outside range",
			grant:    &catalog.Grant{AmountMin: 500000, AmountMax: 500000},
			prof:     p,
			expected: 0.0,
		},
		{
			name:     "range amount uses midpoint",
			grant:    &catalog.Grant{AmountMin: 40000, AmountMax: 80000},
			prof:     p,
			expected: 1.0,
		},
		{
			name:     "no amount is neutral",
			grant:    &catalog.Grant{},
			prof:     p,
			expected: 0.5,
		},
		{
			name:     "unbounded profile is neutral",
			grant:    &catalog.Grant{AmountMin: 60000, AmountMax: 60000},
			prof:     &profile.Profile{},
			expected: 0.5,
		},
		{
			name: "degenerate range scores full on exact hit",
			grant: &catalog.Grant{
				AmountMin: 50000, AmountMax: 50000,
			},
			prof: &profile.Profile{
				FundingRangeMin: floatPtr(50000),
				FundingRangeMax: floatPtr(50000),
			},
			expected: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FundingFit(tt.grant, tt.prof)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestDeadlineUrgency tests the deadline actionability ramp.
func TestDeadlineUrgency(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		deadline *time.Time
		expected float64
	}{
		{
			name:     "no deadline is neutral",
			deadline: nil,
			expected: 0.5,
		},
		{
			name:     "due in 10 days peaks",
			deadline: timePtr(now.AddDate(0, 0, 10)),
			expected: 1.0,
		},
		{
			name:     "due in exactly 30 days peaks",
			deadline: timePtr(now.Add(30 * 24 * time.Hour)),
			expected: 1.0,
		},
		{
			name:     "due at the horizon bottoms out",
			deadline: timePtr(now.Add(180 * 24 * time.Hour)),
			expected: 0.5,
		},
		{
			name:     "midway down the ramp",
			deadline: timePtr(now.Add(105 * 24 * time.Hour)),
			expected: 0.75,
		},
		{
			name:     "past deadline",
			deadline: timePtr(now.AddDate(0, 0, -1)),
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DeadlineUrgency(tt.deadline, now, 180)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestScoreGrant_AllSignalsMatch verifies that a grant matching every
// declared preference scores above 0.7.
func TestScoreGrant_AllSignalsMatch(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := &profile.Profile{
		OrgID:           "org-1",
		FundingRangeMin: floatPtr(25000),
		FundingRangeMax: floatPtr(500000),
		Industries:      []string{"Technology"},
		Locations:       []string{"National"},
		OrgTypes:        []string{"Startup"},
	}
	g := &catalog.Grant{
		ID:               "grant-1",
		AmountMin:        50000,
		AmountMax:        50000,
		IndustryTags:     []string{"Technology", "AI"},
		Location:         "National",
		EligibleOrgTypes: []string{"Startup", "SME"},
	}

	if !Eligible(g, p, now) {
		t.Fatal("expected grant to be eligible")
	}
	score := ScoreGrant(g, p, DefaultWeights(), now)
	if score <= 0.7 {
		t.Errorf("expected score > 0.7 when all signals match, got %f", score)
	}
	if score > 1.0 {
		t.Errorf("expected score <= 1.0, got %f", score)
	}
}

// TestScoreGrant_Monotone verifies that improving industry overlap while
// holding everything else fixed never lowers the score.
func TestScoreGrant_Monotone(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := &profile.Profile{
		OrgID:      "org-1",
		Industries: []string{"Technology", "Healthcare", "Energy"},
	}

	prev := -1.0
	tags := []string{}
	for _, add := range p.Industries {
		tags = append(tags, add)
		g := &catalog.Grant{ID: "g", IndustryTags: tags, Location: "Berlin"}
		score := ScoreGrant(g, p, DefaultWeights(), now)
		if score < prev {
			t.Fatalf("score decreased from %f to %f after adding tag %q", prev, score, add)
		}
		prev = score
	}
}

// TestScoreGrant_NilWeightsUsesDefaults verifies the nil-weights fallback.
func TestScoreGrant_NilWeightsUsesDefaults(t *testing.T) {
	now := time.Now()
	g := &catalog.Grant{ID: "g", IndustryTags: []string{"Technology"}}
	p := &profile.Profile{OrgID: "org-1", Industries: []string{"Technology"}}

	withNil := ScoreGrant(g, p, nil, now)
	withDefaults := ScoreGrant(g, p, DefaultWeights(), now)
	if math.Abs(withNil-withDefaults) > 0.001 {
		t.Errorf("nil weights scored %f, defaults scored %f", withNil, withDefaults)
	}
}

// TestSuccessProbability tests the conservative success estimate.
func TestSuccessProbability(t *testing.T) {
	tests := []struct {
		name           string
		matchScore     float64
		acceptanceRate *float64
		expected       float64
	}{
		{
			name:           "unknown rate defaults to neutral",
			matchScore:     0.8,
			acceptanceRate: nil,
			expected:       0.65,
		},
		{
			name:           "known rate blends in",
			matchScore:     0.8,
			acceptanceRate: floatPtr(0.2),
			expected:       0.5,
		},
		{
			name:           "perfect match, perfect rate",
			matchScore:     1.0,
			acceptanceRate: floatPtr(1.0),
			expected:       1.0,
		},
		{
			name:           "rate above 1 is clamped",
			matchScore:     0.0,
			acceptanceRate: floatPtr(1.5),
			expected:       0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SuccessProbability(tt.matchScore, tt.acceptanceRate)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestNewsRecency tests the publication recency decay.
func TestNewsRecency(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		publishedAt *time.Time
		expected    float64
	}{
		{
			name:        "just published",
			publishedAt: timePtr(now),
			expected:    1.0,
		},
		{
			name:        "15 days old",
			publishedAt: timePtr(now.Add(-360 * time.Hour)),
			expected:    0.5,
		},
		{
			name:        "30 days old decays to zero",
			publishedAt: timePtr(now.Add(-720 * time.Hour)),
			expected:    0.0,
		},
		{
			name:        "40 days old stays at zero",
			publishedAt: timePtr(now.Add(-960 * time.Hour)),
			expected:    0.0,
		},
		{
			name:        "no timestamp carries no signal",
			publishedAt: nil,
			expected:    0.0,
		},
		{
			name:        "future timestamp clamps to fresh",
			publishedAt: timePtr(now.Add(2 * time.Hour)),
			expected:    1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewsRecency(tt.publishedAt, now)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestScoreNews_StaleSectorMatchBound verifies that a sector match published
// 40 days ago never exceeds half the sector contribution.
func TestScoreNews_StaleSectorMatchBound(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	n := &catalog.NewsItem{
		ID:          "news-1",
		Sector:      "Technology",
		PublishedAt: timePtr(now.Add(-40 * 24 * time.Hour)),
	}

	score := ScoreNews(n, []string{"Technology"}, DefaultWeights(), now)
	if score > 0.25+0.001 {
		t.Errorf("expected stale sector match bounded at 0.25, got %f", score)
	}

	// A fresh item with the same sector must outrank the stale one.
	fresh := &catalog.NewsItem{
		ID:          "news-2",
		Sector:      "Technology",
		PublishedAt: timePtr(now.Add(-1 * time.Hour)),
	}
	freshScore := ScoreNews(fresh, []string{"Technology"}, DefaultWeights(), now)
	if freshScore <= score {
		t.Errorf("expected fresh item (%f) to outscore stale item (%f)", freshScore, score)
	}
}

// TestScoreNews_SectorMismatch verifies that a non-subscribed sector scores
// only on recency.
func TestScoreNews_SectorMismatch(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	n := &catalog.NewsItem{
		ID:          "news-1",
		Sector:      "Agriculture",
		PublishedAt: timePtr(now),
	}

	score := ScoreNews(n, []string{"Technology"}, DefaultWeights(), now)
	if math.Abs(score-0.5) > 0.001 {
		t.Errorf("expected fresh mismatched sector to score 0.5, got %f", score)
	}
}
