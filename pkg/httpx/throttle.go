package httpx

import (
	"net/http"

	"golang.org/x/time/rate"
)

// Throttle applies a process-wide token bucket in front of the whole
// mux, bounding total inflow regardless of identity. Per-identity
// fairness is the rate-limit middleware's job; this is the flood valve.
// rps <= 0 disables throttling.
func Throttle(rps float64, burst int) Middleware {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{
					Error:       "rate_limit_exceeded",
					Code:        CodeRateLimited,
					Description: "Service is at capacity. Please try again shortly.",
					RetryAfter:  1,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
