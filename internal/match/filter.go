package match

import (
	"strings"
	"time"

	"github.com/fundscope/fundscope/internal/catalog"
	"github.com/fundscope/fundscope/internal/profile"
)

// Eligible reports whether a grant passes every hard constraint the profile
// declares. Pure and total: no side effects, defined for every input.
//
// Rules combine with AND semantics; any failing rule disqualifies the
// record. A profile with no preference fields set passes everything — an
// under-specified organization sees the open catalog, not an empty page.
func Eligible(g *catalog.Grant, p *profile.Profile, now time.Time) bool {
	return fundingEligible(g, p) &&
		industryEligible(g, p) &&
		locationEligible(g, p) &&
		orgTypeEligible(g, p) &&
		deadlineEligible(g, p, now)
}

// fundingEligible checks the funding envelope. A point amount must sit
// inside the profile bounds; a range amount passes when the two ranges
// overlap. Records with no amount are never excluded on funding grounds.
func fundingEligible(g *catalog.Grant, p *profile.Profile) bool {
	if !g.HasAmount() {
		return true
	}

	lo, hi := g.AmountMin, g.AmountMax
	if hi < lo {
		lo, hi = hi, lo
	}
	if p.FundingRangeMin != nil && hi < *p.FundingRangeMin {
		return false
	}
	if p.FundingRangeMax != nil && lo > *p.FundingRangeMax {
		return false
	}
	return true
}

// industryEligible requires at least one record tag to appear in the
// profile's industry set, case-insensitively on whole tag tokens.
func industryEligible(g *catalog.Grant, p *profile.Profile) bool {
	if len(p.Industries) == 0 {
		return true
	}
	return IndustryOverlap(g.IndustryTags, p.Industries) > 0
}

// locationEligible requires the record location to equal one of the
// profile's locations, or the record to carry national/global scope.
func locationEligible(g *catalog.Grant, p *profile.Profile) bool {
	if len(p.Locations) == 0 {
		return true
	}
	if g.IsNational() {
		return true
	}
	for _, loc := range p.Locations {
		if strings.EqualFold(g.Location, loc) {
			return true
		}
	}
	return false
}

// orgTypeEligible requires a non-empty intersection between the profile's
// org types and the record's eligible org types.
func orgTypeEligible(g *catalog.Grant, p *profile.Profile) bool {
	if len(p.OrgTypes) == 0 {
		return true
	}
	for _, want := range p.OrgTypes {
		for _, have := range g.EligibleOrgTypes {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

// deadlineEligible enforces the deadline tolerance window: whole days until
// the deadline must be in [0, MaxDeadlineDays]. Grants with no deadline are
// rolling and never excluded by this rule.
func deadlineEligible(g *catalog.Grant, p *profile.Profile, now time.Time) bool {
	if p.MaxDeadlineDays == nil || g.Deadline == nil {
		return true
	}
	days := daysUntil(*g.Deadline, now)
	return days >= 0 && days <= *p.MaxDeadlineDays
}
