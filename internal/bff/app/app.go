package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	httpapi "github.com/tablefare/bff/internal/bff/http"
	"github.com/tablefare/bff/internal/bff/identity"
	"github.com/tablefare/bff/internal/bff/proxy"
	"github.com/tablefare/bff/pkg/cryptox"
	"github.com/tablefare/bff/pkg/csrftoken"
	"github.com/tablefare/bff/pkg/ratelimit"
	"github.com/tablefare/bff/pkg/replay"
	"github.com/tablefare/bff/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application wires the trust-boundary pieces together: the proxy to the
// backend, identity resolution, CSRF signing, replay and rate-limit
// stores, and the HTTP surface on top of them.
type Application struct {
	cfg    Config
	logger *slog.Logger

	proxy *proxy.Proxy
	redis *redis.Client // nil when running on in-memory stores

	server *http.Server
	router *httpapi.Router

	// janitorCancel stops the in-memory replay sweeper on shutdown.
	janitorCancel context.CancelFunc
}

// New creates an Application with all dependencies initialized. It fails
// fast: an upstream URL that does not parse, a weak secret, or a route
// the configured runtime cannot serve all stop the process here.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "bff",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	caps, err := proxy.ParseRuntime(cfg.Runtime)
	if err != nil {
		return nil, err
	}
	app.proxy, err = proxy.New(cfg.UpstreamURL, caps)
	if err != nil {
		return nil, err
	}

	signer, err := csrftoken.New([]byte(cfg.CSRFSecret), cfg.Issuer)
	if err != nil {
		return nil, err
	}

	fp, err := cryptox.NewFingerprinter([]byte(cfg.CSRFSecret))
	if err != nil {
		return nil, err
	}

	sessions, err := identity.NewUpstreamStore(app.proxy, cfg.SessionCookie)
	if err != nil {
		return nil, err
	}

	replayStore, limiter := app.initStores()

	app.router = httpapi.NewRouter(httpapi.RouterConfig{
		Logger:       app.logger,
		BuildVersion: BuildVersion,

		Gate:         identity.NewGate(sessions, cfg.SessionCookie),
		Signer:       signer,
		CaptchaGuard: replay.NewGuard(replayStore, fp),
		Limiter:      limiter,
		Proxy:        app.proxy,

		CSRFCookieName: cfg.CSRFCookie,
		CookieSecure:   cfg.Env != "dev",

		ThrottleRPS:   cfg.ThrottleRPS,
		ThrottleBurst: cfg.ThrottleBurst,
	})
	if err := app.router.ApplyRoutes(); err != nil {
		return nil, fmt.Errorf("route registration failed: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return app, nil
}

// initStores selects Redis-backed or in-memory replay and rate-limit
// stores. Redis is required for multi-instance deployments; a single
// instance runs fine on memory.
func (app *Application) initStores() (replay.Store, ratelimit.Limiter) {
	if app.cfg.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: app.cfg.RedisAddr})
		app.logger.Info("using redis stores", "addr", app.cfg.RedisAddr)
		return replay.NewRedisStore(app.redis), ratelimit.NewRedis(app.redis)
	}

	store := replay.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	app.janitorCancel = cancel
	store.StartJanitor(ctx, app.cfg.ReplaySweepInterval)

	app.logger.Info("using in-memory stores")
	return store, ratelimit.NewMemory()
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("bff starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"upstream", app.cfg.UpstreamURL,
		"runtime", app.cfg.Runtime,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down bff...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.janitorCancel != nil {
		app.janitorCancel()
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
			return err
		}
	}

	app.logger.Info("bff stopped")
	return nil
}
