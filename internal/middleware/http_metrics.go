package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// normalizePath maps request paths to route patterns so per-org URLs do not
// explode metric cardinality. /profiles/acme-fund becomes /profiles/{org_id}.
func normalizePath(path string) string {
	staticRoutes := map[string]bool{
		"/":             true,
		"/grants/match": true,
		"/news/match":   true,
		"/refresh":      true,
		"/health":       true,
		"/ready":        true,
		"/metrics":      true,
	}
	if staticRoutes[path] {
		return path
	}

	if strings.HasPrefix(path, "/profiles/") {
		parts := strings.Split(path, "/")
		if len(parts) == 3 && parts[2] != "" {
			return "/profiles/{org_id}"
		}
	}

	// Unknown patterns pass through unchanged.
	return path
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// HTTPMetrics records duration, count, and response size for every request.
// Health probes (/health, /ready) are excluded.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				mrw.size,
			)
		})
	}
}
