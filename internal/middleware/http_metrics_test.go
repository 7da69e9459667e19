package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/grants/match", "/grants/match"},
		{"/news/match", "/news/match"},
		{"/refresh", "/refresh"},
		{"/metrics", "/metrics"},
		{"/profiles/acme-fund", "/profiles/{org_id}"},
		{"/profiles/", "/profiles/"},
		{"/profiles/acme/extra", "/profiles/acme/extra"},
		{"/unknown", "/unknown"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestHTTPMetrics_RecordsRequest(t *testing.T) {
	metrics := NewMetrics()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		t.Fatalf("register metrics: %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"results":[]}`))
	}))

	req := httptest.NewRequest(http.MethodGet, "/profiles/acme-fund", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := false
	for _, mf := range families {
		if mf.GetName() != MetricHTTPRequestsTotal {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["path"] != "/profiles/{org_id}" {
				t.Errorf("expected normalized path label, got %q", labels["path"])
			}
			if labels["status"] != "200" {
				t.Errorf("expected status 200, got %q", labels["status"])
			}
			if m.GetCounter().GetValue() != 1 {
				t.Errorf("expected counter 1, got %v", m.GetCounter().GetValue())
			}
			found = true
		}
	}
	if !found {
		t.Fatalf("metric %s not found", MetricHTTPRequestsTotal)
	}
}

func TestHTTPMetrics_SkipsHealthProbes(t *testing.T) {
	metrics := NewMetrics()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		t.Fatalf("register metrics: %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == MetricHTTPRequestsTotal && len(mf.GetMetric()) > 0 {
			t.Error("expected no request metrics for health probes")
		}
	}
}

func TestMetricsResponseWriter_DefaultStatus(t *testing.T) {
	metrics := NewMetrics()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		t.Fatalf("register metrics: %v", err)
	}

	// Handler writes a body without an explicit WriteHeader call.
	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/grants/match", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != MetricHTTPRequestsTotal {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "status" && lp.GetValue() != "200" {
					t.Errorf("expected default status 200, got %q", lp.GetValue())
				}
			}
		}
	}
}
