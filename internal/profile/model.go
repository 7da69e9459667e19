// Package profile defines the organizational preference profile and its
// store. The profile is the left-hand side of every match: funding envelope,
// industry focus, locations, organization types, and deadline tolerance.
package profile

import (
	"errors"
	"time"
)

// Validation errors for profile writes.
var (
	// ErrProfileNotFound is returned when no profile exists for an org.
	// Callers typically fall back to the open profile rather than failing.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrInvalidFundingRange is returned when funding_range_min exceeds
	// funding_range_max. Rejected at write time, never silently repaired.
	ErrInvalidFundingRange = errors.New("funding_range_min must not exceed funding_range_max")

	// ErrMissingOrgID is returned when a profile write carries no org ID.
	ErrMissingOrgID = errors.New("org_id is required")

	// ErrNegativeDeadlineDays is returned when max_deadline_days is negative.
	ErrNegativeDeadlineDays = errors.New("max_deadline_days must not be negative")
)

// Profile holds one organization's matching preferences.
//
// Every field is optional. A profile with no preferences set is the "open
// profile": it matches every well-formed record, so under-specified
// organizations see results instead of an empty page.
type Profile struct {
	OrgID string `json:"org_id"`

	// FundingRangeMin and FundingRangeMax bound the funding envelope.
	// Nil means unbounded on that side.
	FundingRangeMin *float64 `json:"funding_range_min,omitempty"`
	FundingRangeMax *float64 `json:"funding_range_max,omitempty"`

	// Industries, Locations, and OrgTypes are preference sets; insertion
	// order is irrelevant and matching is case-insensitive.
	Industries []string `json:"industries,omitempty"`
	Locations  []string `json:"locations,omitempty"`
	OrgTypes   []string `json:"org_types,omitempty"`

	// MaxDeadlineDays rejects grants whose deadline is farther out than
	// this many days. Nil means no deadline constraint.
	MaxDeadlineDays *int `json:"max_deadline_days,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Open returns the open profile: no preferences, matches everything.
func Open(orgID string) *Profile {
	return &Profile{OrgID: orgID}
}

// IsOpen reports whether the profile carries no preferences at all.
func (p *Profile) IsOpen() bool {
	return p.FundingRangeMin == nil &&
		p.FundingRangeMax == nil &&
		len(p.Industries) == 0 &&
		len(p.Locations) == 0 &&
		len(p.OrgTypes) == 0 &&
		p.MaxDeadlineDays == nil
}

// Validate checks invariants enforced at profile-write time.
func (p *Profile) Validate() error {
	if p.OrgID == "" {
		return ErrMissingOrgID
	}
	if p.FundingRangeMin != nil && p.FundingRangeMax != nil &&
		*p.FundingRangeMin > *p.FundingRangeMax {
		return ErrInvalidFundingRange
	}
	if p.MaxDeadlineDays != nil && *p.MaxDeadlineDays < 0 {
		return ErrNegativeDeadlineDays
	}
	return nil
}
