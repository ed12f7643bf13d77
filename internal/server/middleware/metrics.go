package middleware

import (
	"net/http"
	"time"

	"github.com/neighborly/neighborly/internal/metrics"
)

// Metrics records the count and latency of every request.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		metrics.ObserveRequest(r.Method, ww.status, time.Since(start))
	})
}
