package middleware

import (
	"math"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/logger"
)

// RateLimit rejects requests with 429 once more than rps requests per
// second (with the given burst) arrive across all clients. A burst of 0
// is derived from rps.
func RateLimit(rps float64, burst int, next http.Handler) http.Handler {
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(rps)))
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			logger.DebugContext(r.Context(), "Request rate limited", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
