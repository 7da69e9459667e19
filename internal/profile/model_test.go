package profile

import (
	"errors"
	"testing"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

// TestValidate tests the write-time invariants.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr error
	}{
		{
			name:    "minimal valid profile",
			profile: Profile{OrgID: "org-1"},
			wantErr: nil,
		},
		{
			name: "full valid profile",
			profile: Profile{
				OrgID:           "org-1",
				FundingRangeMin: floatPtr(25000),
				FundingRangeMax: floatPtr(500000),
				Industries:      []string{"Technology"},
				Locations:       []string{"Berlin"},
				OrgTypes:        []string{"Startup"},
				MaxDeadlineDays: intPtr(90),
			},
			wantErr: nil,
		},
		{
			name:    "missing org id",
			profile: Profile{},
			wantErr: ErrMissingOrgID,
		},
		{
			name: "min exceeds max",
			profile: Profile{
				OrgID:           "org-1",
				FundingRangeMin: floatPtr(500000),
				FundingRangeMax: floatPtr(25000),
			},
			wantErr: ErrInvalidFundingRange,
		},
		{
			name: "equal bounds are allowed",
			profile: Profile{
				OrgID:           "org-1",
				FundingRangeMin: floatPtr(50000),
				FundingRangeMax: floatPtr(50000),
			},
			wantErr: nil,
		},
		{
			name: "one-sided range is allowed",
			profile: Profile{
				OrgID:           "org-1",
				FundingRangeMin: floatPtr(25000),
			},
			wantErr: nil,
		},
		{
			name: "negative deadline tolerance",
			profile: Profile{
				OrgID:           "org-1",
				MaxDeadlineDays: intPtr(-1),
			},
			wantErr: ErrNegativeDeadlineDays,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestOpen verifies the open-profile fallback shape.
func TestOpen(t *testing.T) {
	p := Open("org-1")
	if p.OrgID != "org-1" {
		t.Errorf("expected org-1, got %q", p.OrgID)
	}
	if !p.IsOpen() {
		t.Error("expected the open profile to report IsOpen")
	}

	p.Industries = []string{"Technology"}
	if p.IsOpen() {
		t.Error("expected a profile with preferences to not be open")
	}
}
