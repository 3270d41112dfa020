package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tablefare/bff/pkg/httpx"
	"github.com/tablefare/bff/pkg/ratelimit"
)

func TestIPKeyExtractor(t *testing.T) {
	t.Run("extracts from RemoteAddr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"

		require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(req))
	})

	t.Run("prefers X-Forwarded-For", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Forwarded-For", "203.0.113.1, 192.168.1.1")

		require.Equal(t, "203.0.113.1", httpx.IPKeyExtractor(req))
	})

	t.Run("falls back to X-Real-IP", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Real-IP", "203.0.113.9")

		require.Equal(t, "203.0.113.9", httpx.IPKeyExtractor(req))
	})
}

func TestUserIDKeyExtractor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Empty(t, httpx.UserIDKeyExtractor(req))

	req = req.WithContext(httpx.WithUserID(req.Context(), "u1"))
	require.Equal(t, "u1", httpx.UserIDKeyExtractor(req))
}

func TestCompositeKeyExtractor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:443"
	req = req.WithContext(httpx.WithUserID(req.Context(), "u1"))

	key := httpx.CompositeKeyExtractor(":", httpx.UserIDKeyExtractor, httpx.IPKeyExtractor)(req)
	require.Equal(t, "u1:10.0.0.1", key)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.NewMemory()
	policy := ratelimit.Policy{Limit: 3, Window: time.Minute}
	h := httpx.Chain(okHandler(), httpx.RateLimitByIP(limiter, "test", policy))

	doReq := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":12345"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("admits up to the limit then rejects", func(t *testing.T) {
		for i := range 3 {
			rec := doReq("192.0.2.1")
			require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		}

		rec := doReq("192.0.2.1")
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
		require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		require.Contains(t, rec.Body.String(), httpx.CodeRateLimited)
	})

	t.Run("other clients are unaffected", func(t *testing.T) {
		rec := doReq("192.0.2.99")
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRateLimitMiddleware_RoutesAreIndependent(t *testing.T) {
	limiter := ratelimit.NewMemory()
	policy := ratelimit.Policy{Limit: 1, Window: time.Minute}

	a := httpx.Chain(okHandler(), httpx.RateLimitByIP(limiter, "route-a", policy))
	b := httpx.Chain(okHandler(), httpx.RateLimitByIP(limiter, "route-b", policy))

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "192.0.2.1:1"
		return r
	}

	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.ServeHTTP(rec, req())
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Same client, same limiter instance, different route: fresh counter.
	rec = httptest.NewRecorder()
	b.ServeHTTP(rec, req())
	require.Equal(t, http.StatusOK, rec.Code)
}

type downLimiter struct{}

func (downLimiter) Allow(context.Context, string, ratelimit.Policy) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, ratelimit.ErrUnavailable
}

func TestRateLimitMiddleware_StoreFailure(t *testing.T) {
	doReq := func(h http.Handler) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "192.0.2.1:1"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("fail-closed policy rejects", func(t *testing.T) {
		policy := ratelimit.Policy{Limit: 5, Window: time.Minute, FailClosed: true}
		h := httpx.Chain(okHandler(), httpx.RateLimitByIP(downLimiter{}, "login", policy))

		rec := doReq(h)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
	})

	t.Run("fail-open policy admits", func(t *testing.T) {
		policy := ratelimit.Policy{Limit: 5, Window: time.Minute}
		h := httpx.Chain(okHandler(), httpx.RateLimitByIP(downLimiter{}, "listings", policy))

		rec := doReq(h)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRateLimitMiddleware_ElevenInOneSecond(t *testing.T) {
	limiter := ratelimit.NewMemory()
	policy := ratelimit.Policy{Limit: 10, Window: time.Second}
	h := httpx.Chain(okHandler(), httpx.RateLimitByIP(limiter, "burst", policy))

	for i := range 11 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.5:1"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if i < 10 {
			require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		} else {
			require.Equal(t, http.StatusTooManyRequests, rec.Code, "request 11 must be rejected")
		}
	}
}

func TestParsePolicyFromEnv(t *testing.T) {
	def := ratelimit.Policy{Limit: 5, Window: time.Minute}

	t.Run("uses defaults when unset", func(t *testing.T) {
		require.Equal(t, def, httpx.ParsePolicyFromEnv("UNSET_PREFIX", def))
	})

	t.Run("overrides from environment", func(t *testing.T) {
		t.Setenv("RATELIMIT_TESTPOLICY_REQUESTS", "42")
		t.Setenv("RATELIMIT_TESTPOLICY_WINDOW_SEC", "30")

		p := httpx.ParsePolicyFromEnv("TESTPOLICY", def)
		require.Equal(t, 42, p.Limit)
		require.Equal(t, 30*time.Second, p.Window)
	})

	t.Run("ignores invalid values", func(t *testing.T) {
		t.Setenv("RATELIMIT_BADPOLICY_REQUESTS", "not-a-number")
		t.Setenv("RATELIMIT_BADPOLICY_WINDOW_SEC", "-5")

		require.Equal(t, def, httpx.ParsePolicyFromEnv("BADPOLICY", def))
	})
}

func TestThrottle(t *testing.T) {
	t.Run("rejects once the bucket is drained", func(t *testing.T) {
		h := httpx.Chain(okHandler(), httpx.Throttle(0.001, 2))

		codes := make([]int, 0, 3)
		for range 3 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			codes = append(codes, rec.Code)
		}
		require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	})

	t.Run("disabled when rps is zero", func(t *testing.T) {
		h := httpx.Chain(okHandler(), httpx.Throttle(0, 0))
		for range 10 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler(), mark("outer"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"outer", "inner"}, order)
}
