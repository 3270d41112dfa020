package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tablefare/bff/internal/bff/proxy"
	"github.com/tablefare/bff/pkg/slogx"
)

const sessionResolveTimeout = 5 * time.Second

// UpstreamStore resolves sessions against the upstream backend's
// whoami endpoint through the proxy, so header allowlisting and timeout
// bounds apply to identity resolution like any other upstream call.
type UpstreamStore struct {
	proxy      *proxy.Proxy
	plan       proxy.Plan
	cookieName string
}

// NewUpstreamStore registers the session-resolution plan on the proxy.
func NewUpstreamStore(p *proxy.Proxy, cookieName string) (*UpstreamStore, error) {
	plan, err := p.Register(proxy.Plan{
		Name:            "session-resolve",
		Method:          http.MethodGet,
		TargetPath:      "/auth/me",
		PreserveHeaders: []string{"Cookie", "Authorization"},
		Timeout:         sessionResolveTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &UpstreamStore{proxy: p, plan: plan, cookieName: cookieName}, nil
}

// Resolve implements SessionStore. Any upstream answer other than a
// well-formed 200 means "no valid session": the caller cannot tell a
// bad cookie from an expired one, by contract.
func (s *UpstreamStore) Resolve(ctx context.Context, credential string, source Source) (*Identity, error) {
	// Rebuild a minimal request carrying only the credential; the
	// original inbound headers stay behind the boundary.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return nil, err
	}
	switch source {
	case SourceBearer:
		req.Header.Set("Authorization", "Bearer "+credential)
	default:
		req.Header.Set("Cookie", s.cookieName+"="+credential)
	}

	res, err := s.proxy.Forward(ctx, req, s.plan, "")
	if err != nil {
		return nil, err
	}
	if res.Status != http.StatusOK {
		return nil, nil
	}

	var payload struct {
		ID          string   `json:"id"`
		Permissions []string `json:"permissions"`
	}
	if err := json.Unmarshal(res.Body, &payload); err != nil || payload.ID == "" {
		slogx.FromContext(ctx).Warn("malformed session payload from upstream")
		return nil, nil
	}

	return &Identity{
		ID:          payload.ID,
		Permissions: NewPermissionSet(payload.Permissions...),
		Source:      source,
	}, nil
}
