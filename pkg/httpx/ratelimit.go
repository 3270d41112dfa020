package httpx

import (
	"math"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tablefare/bff/pkg/ratelimit"
	"github.com/tablefare/bff/pkg/slogx"
)

// Common rate limit profiles for different endpoint types.
// These can be overridden via environment variables (see init() below).
var (
	// StrictLimit for unauthenticated state-changing endpoints (brute
	// force prevention). Fails closed: admitting uncounted login
	// attempts while the counter store is down would waive the limit
	// exactly when it matters.
	// Override with: RATELIMIT_STRICT_REQUESTS, RATELIMIT_STRICT_WINDOW_SEC
	StrictLimit = ratelimit.Policy{
		Limit:      5,
		Window:     time.Minute,
		FailClosed: true,
	}

	// ModerateLimit for authenticated operations.
	// Override with: RATELIMIT_MODERATE_REQUESTS, RATELIMIT_MODERATE_WINDOW_SEC
	ModerateLimit = ratelimit.Policy{
		Limit:  20,
		Window: time.Minute,
	}

	// LenientLimit for less sensitive operations.
	// Override with: RATELIMIT_LENIENT_REQUESTS, RATELIMIT_LENIENT_WINDOW_SEC
	LenientLimit = ratelimit.Policy{
		Limit:  100,
		Window: time.Minute,
	}

	// PublicLimit for public read-only endpoints.
	// Override with: RATELIMIT_PUBLIC_REQUESTS, RATELIMIT_PUBLIC_WINDOW_SEC
	PublicLimit = ratelimit.Policy{
		Limit:  1000,
		Window: time.Minute,
	}
)

func init() {
	// Allow overriding rate limits via environment variables (useful for testing)
	StrictLimit = ParsePolicyFromEnv("STRICT", StrictLimit)
	ModerateLimit = ParsePolicyFromEnv("MODERATE", ModerateLimit)
	LenientLimit = ParsePolicyFromEnv("LENIENT", LenientLimit)
	PublicLimit = ParsePolicyFromEnv("PUBLIC", PublicLimit)
}

// ParsePolicyFromEnv reads rate limit configuration from environment variables.
// Environment variables follow the pattern: RATELIMIT_{prefix}_{field}
// For example: RATELIMIT_STRICT_REQUESTS, RATELIMIT_STRICT_WINDOW_SEC
func ParsePolicyFromEnv(prefix string, def ratelimit.Policy) ratelimit.Policy {
	p := def

	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests > 0 {
			p.Limit = requests
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			p.Window = time.Duration(windowSec) * time.Second
		}
	}

	return p
}

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes (e.g., IP address, user ID, route name).
type KeyExtractor func(*http.Request) string

// IPKeyExtractor extracts the client IP address from the request.
// It handles X-Forwarded-For and X-Real-IP headers for proxied requests.
func IPKeyExtractor(r *http.Request) string {
	// Check X-Forwarded-For header (comma-separated list)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fallback to RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// UserIDKeyExtractor extracts the authenticated user id from the request
// context. Returns empty string for anonymous callers.
func UserIDKeyExtractor(r *http.Request) string {
	return UserIDFrom(r.Context())
}

// CompositeKeyExtractor combines multiple key extractors with a separator.
// Example: CompositeKeyExtractor(":", UserIDKeyExtractor, IPKeyExtractor)
// would produce keys like "user123:192.168.1.1".
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		var parts []string
		for _, extractor := range extractors {
			if key := extractor(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// RateLimitMiddleware enforces the given policy per identity key. The
// route name scopes keys so routes sharing one limiter instance keep
// independent counters. When the counter store is unreachable the
// policy decides: FailClosed policies reject with 503, the rest admit
// the request with the failure logged (the throttle still bounds total
// inflow).
func RateLimitMiddleware(limiter ratelimit.Limiter, route string, policy ratelimit.Policy, keyExtractor KeyExtractor) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			key := keyExtractor(r)
			if key == "" {
				// If we can't extract a key, allow the request but log it
				log.Warn("rate limit: unable to extract key, allowing request", "route", route)
				next.ServeHTTP(w, r)
				return
			}

			decision, err := limiter.Allow(ctx, route+":"+key, policy)
			if err != nil {
				if policy.FailClosed {
					retryAfter := int(math.Ceil(policy.Window.Seconds()))
					log.Error("rate limit store failure, rejecting request", "route", route, "err", err)
					w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
					WriteJSON(w, http.StatusServiceUnavailable, ErrorResponse{
						Error:       "temporarily_unavailable",
						Description: "Please try again later.",
						RetryAfter:  retryAfter,
					})
					return
				}
				log.Error("rate limit store failure, allowing request", "route", route, "err", err)
				next.ServeHTTP(w, r)
				return
			}

			if !decision.Allowed {
				retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(policy.Limit))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Window", policy.Window.String())

				log.Warn("rate limit exceeded",
					"key", key,
					"route", route,
					"retry_after", retryAfter,
				)

				WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{
					Error:       "rate_limit_exceeded",
					Code:        CodeRateLimited,
					Description: "Too many requests. Please try again later.",
					RetryAfter:  retryAfter,
				})
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(policy.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP limits by client IP address only.
func RateLimitByIP(limiter ratelimit.Limiter, route string, policy ratelimit.Policy) Middleware {
	return RateLimitMiddleware(limiter, route, policy, IPKeyExtractor)
}

// RateLimitByUser limits by authenticated user id, falling back to IP
// for anonymous callers.
func RateLimitByUser(limiter ratelimit.Limiter, route string, policy ratelimit.Policy) Middleware {
	return RateLimitMiddleware(limiter, route, policy, CompositeKeyExtractor(":",
		UserIDKeyExtractor,
		IPKeyExtractor,
	))
}
