// Package match implements the profile-based matching engine: the
// eligibility filter, the weighted relevance scorer, and the ranker that
// turns a catalog snapshot into a ranked, paginated result set.
package match

import (
	"math"
	"strings"
	"time"

	"github.com/fundscope/fundscope/internal/catalog"
	"github.com/fundscope/fundscope/internal/profile"
)

// urgencyRampDays is the deadline distance at which urgency peaks: anything
// due within this many days scores the full 1.0.
const urgencyRampDays = 30

// newsDecayHours is the window over which a news item's recency signal
// decays linearly to zero (30 days).
const newsDecayHours = 720

// clamp01 clamps v to the [0, 1] range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// IndustryOverlap computes the industry-tag overlap fraction.
//
// Parameters:
//   - tags: The record's industry tags
//   - industries: The profile's industry preference set
//
// Returns |matched tags| / |industries|, or 1.0 when the profile declares no
// industries (no preference means every record is a full match). Matching is
// case-insensitive on whole tag tokens.
func IndustryOverlap(tags []string, industries []string) float64 {
	if len(industries) == 0 {
		return 1.0
	}

	tagSet := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		tagSet[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	matched := 0
	for _, ind := range industries {
		if _, ok := tagSet[strings.ToLower(strings.TrimSpace(ind))]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(industries))
}

// LocationScore computes the location exactness component.
//
// Returns 1.0 for an exact (case-insensitive) match against any preferred
// location, 0.6 for a national/global-scope record that matches nothing
// exactly, and 0 otherwise. A profile with no location preference scores 1.0.
func LocationScore(location string, locations []string) float64 {
	if len(locations) == 0 {
		return 1.0
	}
	for _, loc := range locations {
		if strings.EqualFold(location, loc) {
			return 1.0
		}
	}
	if strings.EqualFold(location, catalog.LocationNational) {
		return 0.6
	}
	return 0
}

// FundingFit computes how well the record's funding amount sits inside the
// profile's funding envelope.
//
// The record midpoint scores 1.0 at the center of the profile range,
// decaying linearly toward the edges (0.5 at either edge), and 0 outside
// the range. When the profile leaves either bound unset, or the record
// carries no amount, the component is neutral at 0.5.
func FundingFit(g *catalog.Grant, p *profile.Profile) float64 {
	if p.FundingRangeMin == nil || p.FundingRangeMax == nil || !g.HasAmount() {
		return 0.5
	}

	lo, hi := *p.FundingRangeMin, *p.FundingRangeMax
	mid := (g.AmountMin + g.AmountMax) / 2
	if mid < lo || mid > hi {
		return 0
	}

	width := hi - lo
	if width == 0 {
		return 1.0
	}
	center := (lo + hi) / 2
	return 1.0 - math.Abs(mid-center)/width
}

// DeadlineUrgency computes the actionability component for a grant deadline.
//
// Grants due within urgencyRampDays score 1.0; beyond that the score ramps
// down linearly to 0.5 at horizonDays ("just opened"). Grants with no
// deadline are treated as rolling and score a neutral 0.5. Past deadlines
// score 0, though the eligibility filter excludes them first.
func DeadlineUrgency(deadline *time.Time, now time.Time, horizonDays int) float64 {
	if deadline == nil {
		return 0.5
	}
	daysLeft := daysUntil(*deadline, now)
	if daysLeft < 0 {
		return 0
	}
	if daysLeft <= urgencyRampDays {
		return 1.0
	}
	if horizonDays <= urgencyRampDays {
		return 0.5
	}
	if daysLeft >= horizonDays {
		return 0.5
	}
	frac := float64(daysLeft-urgencyRampDays) / float64(horizonDays-urgencyRampDays)
	return 1.0 - 0.5*frac
}

// ConfidenceScore returns the producer-supplied quality hint clamped to
// [0, 1], or the neutral 0.5 when the producer supplied none.
func ConfidenceScore(confidence *float64) float64 {
	if confidence == nil {
		return 0.5
	}
	return clamp01(*confidence)
}

// ScoreGrant computes the relevance score for a grant against a profile.
//
// The score is a weighted linear combination of the five components,
// clamped to [0, 1]. Deterministic for a fixed now, and monotone in each
// component: improving any single signal never lowers the result.
func ScoreGrant(g *catalog.Grant, p *profile.Profile, w *Weights, now time.Time) float64 {
	if w == nil {
		w = DefaultWeights()
	}

	score := IndustryOverlap(g.IndustryTags, p.Industries)*w.Grant.Industry +
		LocationScore(g.Location, p.Locations)*w.Grant.Location +
		FundingFit(g, p)*w.Grant.FundingFit +
		DeadlineUrgency(g.Deadline, now, w.UrgencyHorizonDays)*w.Grant.Urgency +
		ConfidenceScore(g.Confidence)*w.Grant.Confidence

	return clamp01(score)
}

// SuccessProbability estimates the chance of a successful application.
//
// Deliberately more conservative than the raw match score:
// 0.5*matchScore + 0.5*historicalAcceptanceRate, with the rate defaulting
// to 0.5 when unknown. A heuristic, not a guarantee.
func SuccessProbability(matchScore float64, acceptanceRate *float64) float64 {
	rate := 0.5
	if acceptanceRate != nil {
		rate = clamp01(*acceptanceRate)
	}
	return clamp01(0.5*matchScore + 0.5*rate)
}

// SectorScore reports whether the news item's sector is in the subscribed
// set: 1.0 on a case-insensitive match, 0 otherwise. An empty subscription
// set matches every sector.
func SectorScore(sector string, sectors []string) float64 {
	if len(sectors) == 0 {
		return 1.0
	}
	for _, s := range sectors {
		if strings.EqualFold(sector, s) {
			return 1.0
		}
	}
	return 0
}

// NewsRecency computes the publication recency component: a linear decay
// from 1.0 at publication to 0 at newsDecayHours. Items with no publication
// timestamp carry no recency signal and score 0.
func NewsRecency(publishedAt *time.Time, now time.Time) float64 {
	if publishedAt == nil {
		return 0
	}
	ageHours := now.Sub(*publishedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	return math.Max(0, 1.0-ageHours/newsDecayHours)
}

// ScoreNews computes the relevance score for a news item against the
// requester's subscribed sectors, recomputed at read time.
//
// The weighted sector and recency components are additionally damped by
// staleness: a fully stale item keeps at most half of its sector
// contribution, so old news never outranks fresh sector matches.
func ScoreNews(n *catalog.NewsItem, sectors []string, w *Weights, now time.Time) float64 {
	if w == nil {
		w = DefaultWeights()
	}

	recency := NewsRecency(n.PublishedAt, now)
	base := SectorScore(n.Sector, sectors)*w.News.Sector + recency*w.News.Recency
	damp := 0.5 + 0.5*recency

	return clamp01(base * damp)
}

// daysUntil returns whole days from now until t, flooring toward zero days
// for partial days remaining and negative for past times.
func daysUntil(t, now time.Time) int {
	d := t.Sub(now)
	if d < 0 {
		return -1
	}
	return int(d.Hours() / 24)
}
