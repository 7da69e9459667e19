package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fundscope/fundscope/internal/profile"
)

var (
	errInvalidLimit  = errors.New("limit must be a positive integer")
	errInvalidOffset = errors.New("offset must be a non-negative integer")
)

// ProfileHandlers holds dependencies for the profile HTTP handlers.
type ProfileHandlers struct {
	profiles profile.Repository
}

// NewProfileHandlers creates a ProfileHandlers instance.
func NewProfileHandlers(profiles profile.Repository) *ProfileHandlers {
	return &ProfileHandlers{profiles: profiles}
}

// profilePayload is the request body for profile writes. OrgID comes from
// the URL, never from the body.
type profilePayload struct {
	FundingRangeMin *float64 `json:"funding_range_min"`
	FundingRangeMax *float64 `json:"funding_range_max"`
	Industries      []string `json:"industries"`
	Locations       []string `json:"locations"`
	OrgTypes        []string `json:"org_types"`
	MaxDeadlineDays *int     `json:"max_deadline_days"`
}

// Handle routes /profiles/{org_id} by method: PUT upserts, GET reads.
func (h *ProfileHandlers) Handle(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimPrefix(r.URL.Path, "/profiles/")
	if orgID == "" || strings.Contains(orgID, "/") {
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		h.upsert(w, r, orgID)
	case http.MethodGet:
		h.get(w, r, orgID)
	default:
		WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

// upsert validates and stores the profile. An inverted funding range is
// rejected here, at write time; the matching engine never repairs it.
func (h *ProfileHandlers) upsert(w http.ResponseWriter, r *http.Request, orgID string) {
	var payload profilePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	p := &profile.Profile{
		OrgID:           orgID,
		FundingRangeMin: payload.FundingRangeMin,
		FundingRangeMax: payload.FundingRangeMax,
		Industries:      payload.Industries,
		Locations:       payload.Locations,
		OrgTypes:        payload.OrgTypes,
		MaxDeadlineDays: payload.MaxDeadlineDays,
	}

	if err := h.profiles.UpsertProfile(r.Context(), p); err != nil {
		switch {
		case errors.Is(err, profile.ErrInvalidFundingRange):
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeInvalidRange, err.Error())
		case errors.Is(err, profile.ErrMissingOrgID), errors.Is(err, profile.ErrNegativeDeadlineDays):
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to store profile")
		}
		return
	}

	WriteJSON(w, http.StatusOK, p)
}

func (h *ProfileHandlers) get(w http.ResponseWriter, r *http.Request, orgID string) {
	p, err := h.profiles.GetProfile(r.Context(), orgID)
	if errors.Is(err, profile.ErrProfileNotFound) {
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeProfileNotFound, "No profile stored for this organization")
		return
	}
	if err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to fetch profile")
		return
	}
	WriteJSON(w, http.StatusOK, p)
}
