// Package proxy relays requests to the upstream backend service. The
// relay is deliberately narrow: only headers named in a plan's allowlist
// cross the boundary, every call is bounded by the plan's timeout, and
// upstream failures are normalized into a stable Error so callers never
// see raw transport errors.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tablefare/bff/pkg/idx"
	"github.com/tablefare/bff/pkg/slogx"
)

const (
	// DefaultTimeout bounds outbound calls when a plan does not set one.
	DefaultTimeout = 10 * time.Second

	// maxResponseBytes caps the upstream body size. A larger body is
	// refused outright; truncating would relay a corrupted payload
	// under the upstream's status.
	maxResponseBytes = 8 << 20
)

// Response headers relayed back to the browser. Everything else the
// upstream sets stays behind the boundary.
var relayedResponseHeaders = []string{
	"Content-Type",
	"Cache-Control",
	"Location",
	"ETag",
}

// Plan describes one forwarding route. Plans are built at startup,
// validated by Register, and immutable afterwards.
type Plan struct {
	// Name identifies the plan in logs and rate-limit keys.
	Name string
	// Method is the outbound HTTP method.
	Method string
	// TargetPath is appended to the upstream base path. Handlers resolve
	// any path parameters before calling Forward.
	TargetPath string
	// PreserveHeaders is the allowlist of inbound request headers copied
	// to the outbound request. Nothing else is forwarded.
	PreserveHeaders []string
	// Timeout bounds the outbound call. Zero means DefaultTimeout.
	Timeout time.Duration
	// RequireCookieForwarding marks plans whose upstream responses set
	// auth cookies. Registering such a plan on a runtime that cannot
	// relay multiple Set-Cookie headers is a configuration error.
	RequireCookieForwarding bool
}

// Result is a relayable upstream response (any status below 500).
type Result struct {
	Status int
	Header http.Header
	Body   []byte
}

// Write relays the result to the browser: allowlisted response headers,
// every Set-Cookie value intact, then the body byte-for-byte.
func (res *Result) Write(w http.ResponseWriter) {
	for _, name := range relayedResponseHeaders {
		for _, v := range res.Header.Values(name) {
			w.Header().Add(name, v)
		}
	}
	// Set-Cookie must be copied value-by-value: joining the values
	// corrupts cookie attributes that themselves contain commas.
	for _, v := range res.Header.Values("Set-Cookie") {
		w.Header().Add("Set-Cookie", v)
	}
	w.WriteHeader(res.Status)
	_, _ = w.Write(res.Body)
}

// Proxy forwards requests to a single upstream base URL.
type Proxy struct {
	base   *url.URL
	caps   Capabilities
	client *http.Client
}

// New creates a Proxy for the given upstream base URL, declaring the
// runtime capabilities plans will be validated against.
func New(baseURL string, caps Capabilities) (*Proxy, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("proxy: invalid upstream url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("proxy: upstream url must be http(s), got %q", baseURL)
	}

	return &Proxy{
		base: base,
		caps: caps,
		// Per-call deadlines come from the plan via context; the client
		// itself stays unbounded so one slow plan can't shrink another's
		// budget.
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				// Redirects are relayed to the browser, not followed.
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// Register validates a plan against the runtime capabilities and fills
// in defaults. Call it for every plan at startup so a misconfigured
// runtime fails the process before it serves a single request.
func (p *Proxy) Register(plan Plan) (Plan, error) {
	if plan.Name == "" {
		return Plan{}, errors.New("proxy: plan name is required")
	}
	if plan.Method == "" {
		return Plan{}, fmt.Errorf("proxy: plan %s: method is required", plan.Name)
	}
	if plan.TargetPath == "" {
		return Plan{}, fmt.Errorf("proxy: plan %s: target path is required", plan.Name)
	}
	if plan.RequireCookieForwarding && !p.caps.MultiSetCookie {
		return Plan{}, fmt.Errorf(
			"proxy: plan %s requires multi Set-Cookie forwarding, which runtime does not provide",
			plan.Name,
		)
	}
	if plan.Timeout <= 0 {
		plan.Timeout = DefaultTimeout
	}
	return plan, nil
}

// Forward sends the inbound request upstream per the plan and returns
// the upstream response for relay. The inbound body is streamed through
// byte-for-byte. Upstream statuses below 500 are Results (the frontend
// needs 4xx bodies verbatim); 5xx, timeouts, and transport failures
// come back as *Error with the detail logged under a correlation id.
// targetPath overrides plan.TargetPath when path parameters had to be
// resolved; pass "" to use the plan's path as-is.
func (p *Proxy) Forward(ctx context.Context, inbound *http.Request, plan Plan, targetPath string) (*Result, error) {
	log := slogx.FromContext(ctx)

	if targetPath == "" {
		targetPath = plan.TargetPath
	}
	outURL := p.base.JoinPath(targetPath)
	outURL.RawQuery = inbound.URL.RawQuery

	callCtx, cancel := context.WithTimeout(ctx, plan.Timeout)
	defer cancel()

	out, err := http.NewRequestWithContext(callCtx, plan.Method, outURL.String(), inbound.Body)
	if err != nil {
		return nil, p.fail(log, plan, KindNetwork, http.StatusBadGateway, err)
	}

	// Strict allowlist: only headers the plan names cross the boundary.
	for _, name := range plan.PreserveHeaders {
		for _, v := range inbound.Header.Values(name) {
			out.Header.Add(name, v)
		}
	}

	resp, err := p.client.Do(out)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return nil, p.fail(log, plan, KindTimeout, http.StatusGatewayTimeout, err)
		case errors.Is(err, context.Canceled):
			return nil, p.fail(log, plan, KindCanceled, http.StatusBadGateway, err)
		default:
			return nil, p.fail(log, plan, KindNetwork, http.StatusBadGateway, err)
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, p.fail(log, plan, KindTimeout, http.StatusGatewayTimeout, err)
		}
		return nil, p.fail(log, plan, KindNetwork, http.StatusBadGateway, err)
	}
	if len(body) > maxResponseBytes {
		return nil, p.fail(log, plan, KindUpstream, http.StatusBadGateway,
			fmt.Errorf("upstream response exceeded %d bytes", maxResponseBytes))
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, p.fail(log, plan, KindUpstream, http.StatusBadGateway,
			fmt.Errorf("upstream returned %d: %.256s", resp.StatusCode, body))
	}

	return &Result{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}, nil
}

// fail logs the true failure under a fresh correlation id and returns
// the normalized client-facing error.
func (p *Proxy) fail(log *slog.Logger, plan Plan, kind Kind, status int, cause error) *Error {
	corrID := idx.New().String()
	log.Error("proxy forward failed",
		"plan", plan.Name,
		"kind", string(kind),
		"correlation_id", corrID,
		"err", cause,
	)
	return &Error{
		Kind:          kind,
		Status:        status,
		Message:       "The upstream service could not complete the request.",
		CorrelationID: corrID,
	}
}
