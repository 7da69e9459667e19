package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/fundscope/fundscope/internal/ingest"
)

// RefreshHandlers holds dependencies for the refresh trigger endpoint.
type RefreshHandlers struct {
	pipeline *ingest.Pipeline
	logger   *slog.Logger
}

// NewRefreshHandlers creates a RefreshHandlers instance.
func NewRefreshHandlers(pipeline *ingest.Pipeline, logger *slog.Logger) *RefreshHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshHandlers{pipeline: pipeline, logger: logger}
}

// Refresh handles POST /refresh: runs one full ingestion pass and returns
// the report. Returns 409 when another refresh already holds the lock.
func (h *RefreshHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	report, err := h.pipeline.Refresh(r.Context())
	if errors.Is(err, ingest.ErrRefreshInProgress) {
		WriteError(w, r.Context(), http.StatusConflict, ErrCodeRefreshBusy, "A refresh is already running")
		return
	}
	if err != nil {
		h.logger.Error("refresh failed", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Refresh failed")
		return
	}

	WriteJSON(w, http.StatusOK, report)
}
