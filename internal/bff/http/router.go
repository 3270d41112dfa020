package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tablefare/bff/internal/bff/identity"
	"github.com/tablefare/bff/internal/bff/proxy"
	"github.com/tablefare/bff/pkg/csrftoken"
	"github.com/tablefare/bff/pkg/httpx"
	"github.com/tablefare/bff/pkg/ratelimit"
	"github.com/tablefare/bff/pkg/replay"
	"github.com/tablefare/bff/pkg/slogx"
)

// RouterConfig carries the shared dependencies for HTTP handlers.
type RouterConfig struct {
	Logger       *slog.Logger
	BuildVersion string

	Gate         *identity.Gate
	Signer       *csrftoken.Signer
	CaptchaGuard *replay.Guard
	Limiter      ratelimit.Limiter
	Proxy        *proxy.Proxy

	CSRFCookieName string
	CookieSecure   bool

	// ThrottleRPS/ThrottleBurst bound total inflow across all routes.
	ThrottleRPS   float64
	ThrottleBurst int
}

// Router owns the mux and the global middleware chain.
type Router struct {
	Mux *http.ServeMux

	cfg         RouterConfig
	middlewares []httpx.Middleware
	startTime   time.Time

	// readyPlan probes the upstream for readiness checks.
	readyPlan proxy.Plan
}

func NewRouter(cfg RouterConfig) *Router {
	r := &Router{
		Mux:       http.NewServeMux(),
		cfg:       cfg,
		startTime: time.Now(),
	}

	// Global chain: request logging first so every rejection below it is
	// logged, then the process-wide throttle.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(cfg.Logger),
		httpx.Throttle(cfg.ThrottleRPS, cfg.ThrottleBurst),
	}

	return r
}

// ApplyRoutes registers every route. Proxy plans are validated here, so
// a runtime that cannot satisfy a route's requirements stops the process
// at startup.
func (rt *Router) ApplyRoutes() error {
	if err := rt.registerAuthProxy(); err != nil {
		return err
	}
	if err := rt.registerPublicProxy(); err != nil {
		return err
	}
	if err := rt.registerAdmin(); err != nil {
		return err
	}
	if err := rt.registerSystem(); err != nil {
		return err
	}
	rt.registerCSRF()
	rt.registerCaptcha()
	return nil
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (rt *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(rt.Mux, rt.middlewares...).ServeHTTP(w, req)
}

func (rt *Router) registerCSRF() {
	h := &CSRFHandler{
		Signer:       rt.cfg.Signer,
		Gate:         rt.cfg.Gate,
		CookieName:   rt.cfg.CSRFCookieName,
		CookieSecure: rt.cfg.CookieSecure,
	}

	// Token issuance is cheap and unauthenticated-reachable; moderate
	// limit keeps it from becoming a signing oracle.
	rt.Mux.Handle("GET /v1/csrf",
		httpx.Chain(http.HandlerFunc(h.HandleIssue),
			httpx.RateLimitByIP(rt.cfg.Limiter, "csrf", httpx.ModerateLimit),
		),
	)
}

func (rt *Router) registerCaptcha() {
	h := &CaptchaHandler{
		Signer: rt.cfg.Signer,
		Guard:  rt.cfg.CaptchaGuard,
	}

	// Both endpoints face anonymous traffic - strict limits.
	rt.Mux.Handle("POST /v1/captcha",
		httpx.Chain(http.HandlerFunc(h.HandleChallenge),
			httpx.RateLimitByIP(rt.cfg.Limiter, "captcha-challenge", httpx.StrictLimit),
		),
	)
	rt.Mux.Handle("POST /v1/captcha/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByIP(rt.cfg.Limiter, "captcha-verify", httpx.StrictLimit),
		),
	)
}

func (rt *Router) registerAuthProxy() error {
	// Login and refresh responses carry auth cookies; registering them
	// hard-requires a runtime that relays multiple Set-Cookie headers.
	login, err := rt.cfg.Proxy.Register(proxy.Plan{
		Name:                    "auth-login",
		Method:                  http.MethodPost,
		TargetPath:              "/auth/login",
		PreserveHeaders:         []string{"Content-Type", "User-Agent"},
		RequireCookieForwarding: true,
	})
	if err != nil {
		return err
	}
	refresh, err := rt.cfg.Proxy.Register(proxy.Plan{
		Name:                    "auth-refresh",
		Method:                  http.MethodPost,
		TargetPath:              "/auth/refresh",
		PreserveHeaders:         []string{"Content-Type", "Cookie", "User-Agent"},
		RequireCookieForwarding: true,
	})
	if err != nil {
		return err
	}
	logout, err := rt.cfg.Proxy.Register(proxy.Plan{
		Name:            "auth-logout",
		Method:          http.MethodPost,
		TargetPath:      "/auth/logout",
		PreserveHeaders: []string{"Cookie", "User-Agent"},
	})
	if err != nil {
		return err
	}

	rt.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(&RelayHandler{Proxy: rt.cfg.Proxy, Plan: login},
			httpx.RateLimitByIP(rt.cfg.Limiter, "auth-login", httpx.StrictLimit),
		),
	)
	rt.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(&RelayHandler{Proxy: rt.cfg.Proxy, Plan: refresh},
			httpx.RateLimitByIP(rt.cfg.Limiter, "auth-refresh", httpx.ModerateLimit),
		),
	)
	rt.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(&RelayHandler{Proxy: rt.cfg.Proxy, Plan: logout},
			httpx.RateLimitByIP(rt.cfg.Limiter, "auth-logout", httpx.ModerateLimit),
		),
	)
	return nil
}

func (rt *Router) registerPublicProxy() error {
	listings, err := rt.cfg.Proxy.Register(proxy.Plan{
		Name:            "listings",
		Method:          http.MethodGet,
		TargetPath:      "/listings",
		PreserveHeaders: []string{"Accept", "User-Agent"},
	})
	if err != nil {
		return err
	}
	listing, err := rt.cfg.Proxy.Register(proxy.Plan{
		Name:            "listing",
		Method:          http.MethodGet,
		TargetPath:      "/listings",
		PreserveHeaders: []string{"Accept", "User-Agent"},
	})
	if err != nil {
		return err
	}
	restaurant, err := rt.cfg.Proxy.Register(proxy.Plan{
		Name:            "restaurant",
		Method:          http.MethodGet,
		TargetPath:      "/restaurants",
		PreserveHeaders: []string{"Accept", "User-Agent"},
	})
	if err != nil {
		return err
	}

	rt.Mux.Handle("GET /v1/listings",
		httpx.Chain(&RelayHandler{Proxy: rt.cfg.Proxy, Plan: listings},
			httpx.RateLimitByIP(rt.cfg.Limiter, "listings", httpx.PublicLimit),
		),
	)
	rt.Mux.Handle("GET /v1/listings/{id}",
		httpx.Chain(&RelayHandler{Proxy: rt.cfg.Proxy, Plan: listing, PathParam: "id"},
			httpx.RateLimitByIP(rt.cfg.Limiter, "listing", httpx.PublicLimit),
		),
	)
	rt.Mux.Handle("GET /v1/restaurants/{id}",
		httpx.Chain(&RelayHandler{Proxy: rt.cfg.Proxy, Plan: restaurant, PathParam: "id"},
			httpx.RateLimitByIP(rt.cfg.Limiter, "restaurant", httpx.PublicLimit),
		),
	)
	return nil
}

func (rt *Router) registerAdmin() error {
	deleteListing, err := rt.cfg.Proxy.Register(proxy.Plan{
		Name:            "admin-delete-listing",
		Method:          http.MethodDelete,
		TargetPath:      "/admin/listings",
		PreserveHeaders: []string{"Cookie"},
	})
	if err != nil {
		return err
	}
	deleteRestaurant, err := rt.cfg.Proxy.Register(proxy.Plan{
		Name:            "admin-delete-restaurant",
		Method:          http.MethodDelete,
		TargetPath:      "/admin/restaurants",
		PreserveHeaders: []string{"Cookie"},
	})
	if err != nil {
		return err
	}

	meHandler := &MeHandler{}
	rt.Mux.Handle("GET /v1/admin/me",
		httpx.Chain(meHandler,
			RequireAuth(rt.cfg.Gate),
			httpx.RateLimitByUser(rt.cfg.Limiter, "admin-me", httpx.LenientLimit),
		),
	)

	// Mutations run the full gauntlet: identity, permission, CSRF, then
	// the upstream call. Each stage is terminal on rejection.
	rt.Mux.Handle("DELETE /v1/admin/listings/{id}",
		httpx.Chain(&RelayHandler{Proxy: rt.cfg.Proxy, Plan: deleteListing, PathParam: "id"},
			RequireAuth(rt.cfg.Gate),
			RequirePermission(identity.PermListingsDelete),
			RequireCSRF(rt.cfg.Signer),
			httpx.RateLimitByUser(rt.cfg.Limiter, "admin-delete-listing", httpx.ModerateLimit),
		),
	)
	rt.Mux.Handle("DELETE /v1/admin/restaurants/{id}",
		httpx.Chain(&RelayHandler{Proxy: rt.cfg.Proxy, Plan: deleteRestaurant, PathParam: "id"},
			RequireAuth(rt.cfg.Gate),
			RequirePermission(identity.PermRestaurantsDelete),
			RequireCSRF(rt.cfg.Signer),
			httpx.RateLimitByUser(rt.cfg.Limiter, "admin-delete-restaurant", httpx.ModerateLimit),
		),
	)
	return nil
}

func (rt *Router) registerSystem() error {
	ready, err := rt.cfg.Proxy.Register(proxy.Plan{
		Name:       "upstream-health",
		Method:     http.MethodGet,
		TargetPath: "/healthz",
		Timeout:    2 * time.Second,
	})
	if err != nil {
		return err
	}
	rt.readyPlan = ready

	// Health endpoints get lenient limits: monitoring may poll often.
	rt.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(rt.startTime, rt.cfg.BuildVersion),
			httpx.RateLimitByIP(rt.cfg.Limiter, "livez", httpx.LenientLimit),
		),
	)
	rt.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(rt.startTime, rt.cfg.BuildVersion, rt.cfg.Proxy, rt.readyPlan),
			httpx.RateLimitByIP(rt.cfg.Limiter, "readyz", httpx.LenientLimit),
		),
	)
	return nil
}
