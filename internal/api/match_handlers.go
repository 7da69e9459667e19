package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/fundscope/fundscope/internal/match"
)

// MatchHandlers holds dependencies for the matching HTTP handlers.
type MatchHandlers struct {
	engine *match.Engine
}

// NewMatchHandlers creates a MatchHandlers instance.
func NewMatchHandlers(engine *match.Engine) *MatchHandlers {
	return &MatchHandlers{engine: engine}
}

// GrantMatchResponse is the response for grant matching.
type GrantMatchResponse struct {
	Items       []match.ScoredGrant `json:"items"`
	Meta        match.PageMeta      `json:"meta"`
	OpenProfile bool                `json:"open_profile"`
}

// MatchGrants handles GET /grants/match?org_id=&limit=&offset=.
// It returns the ranked, paginated grant matches for the organization.
func (h *MatchHandlers) MatchGrants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	query := r.URL.Query()
	orgID := strings.TrimSpace(query.Get("org_id"))
	if orgID == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "org_id is required")
		return
	}

	page, err := parsePage(query.Get("limit"), query.Get("offset"))
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	result, err := h.engine.MatchGrants(r.Context(), orgID, page)
	if err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to match grants")
		return
	}

	WriteJSON(w, http.StatusOK, GrantMatchResponse{
		Items:       result.Items,
		Meta:        result.Meta,
		OpenProfile: result.OpenProfile,
	})
}

// NewsMatchResponse is the response for news matching.
type NewsMatchResponse struct {
	Items []match.ScoredNews `json:"items"`
	Count int                `json:"count"`
}

// MatchNews handles GET /news/match?sectors=a,b&limit=.
// Relevance is recomputed per request against the given sectors.
func (h *MatchHandlers) MatchNews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	query := r.URL.Query()
	var sectors []string
	for _, s := range strings.Split(query.Get("sectors"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			sectors = append(sectors, s)
		}
	}

	limit := match.DefaultPageLimit
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
			return
		}
		limit = n
	}

	items, err := h.engine.MatchNews(r.Context(), sectors, limit)
	if err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to match news")
		return
	}

	WriteJSON(w, http.StatusOK, NewsMatchResponse{Items: items, Count: len(items)})
}

// parsePage parses limit/offset query values into a page request.
func parsePage(rawLimit, rawOffset string) (match.Page, error) {
	page := match.Page{}
	if rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil || n <= 0 {
			return page, errInvalidLimit
		}
		page.Limit = n
	}
	if rawOffset != "" {
		n, err := strconv.Atoi(rawOffset)
		if err != nil || n < 0 {
			return page, errInvalidOffset
		}
		page.Offset = n
	}
	return page, nil
}
