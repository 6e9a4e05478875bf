package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vitae/internal/platform/metrics"
)

// Latency records request counts and durations labeled by the chi route
// pattern, so /v1/claims/{fingerprint} is one series, not one per
// fingerprint.
func Latency(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(r.Method, route, rec.status, time.Since(start))
		})
	}
}
