package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

// TestRequestID_Generated verifies a UUID is generated when no header is set.
func TestRequestID_Generated(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/grants/match", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if captured == "" {
		t.Fatal("expected a request ID in context")
	}
	if _, err := uuid.Parse(captured); err != nil {
		t.Errorf("expected a valid UUID, got %q: %v", captured, err)
	}
	if got := w.Header().Get(RequestIDHeader); got != captured {
		t.Errorf("expected response header %q, got %q", captured, got)
	}
}

// TestRequestID_Propagated verifies an incoming header is reused.
func TestRequestID_Propagated(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/grants/match", nil)
	req.Header.Set(RequestIDHeader, "upstream-id-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if captured != "upstream-id-123" {
		t.Errorf("expected the upstream ID, got %q", captured)
	}
}

// TestGetRequestID_EmptyContext returns empty without the middleware.
func TestGetRequestID_EmptyContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := GetRequestID(req.Context()); got != "" {
		t.Errorf("expected empty request ID, got %q", got)
	}
}
