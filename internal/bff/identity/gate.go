package identity

import (
	"context"
	"net/http"
	"strings"
)

// SessionStore validates a session credential. A nil Identity with a nil
// error means "no valid session"; the store must not distinguish
// missing, malformed, and expired credentials in its return value. An
// error means the store itself could not answer.
type SessionStore interface {
	Resolve(ctx context.Context, credential string, source Source) (*Identity, error)
}

// Gate extracts credentials from requests and resolves them. Callers
// treat a nil Identity as unauthenticated; why resolution failed is
// never surfaced past this boundary.
type Gate struct {
	sessions   SessionStore
	cookieName string
}

func NewGate(sessions SessionStore, cookieName string) *Gate {
	return &Gate{sessions: sessions, cookieName: cookieName}
}

// Resolve returns the request's identity, or nil when the request
// carries no valid credential. The session cookie is preferred; a
// bearer token is accepted as the fallback for non-browser admin
// tooling. Errors are store failures only, never auth failures.
func (g *Gate) Resolve(r *http.Request) (*Identity, error) {
	ctx := r.Context()

	if c, err := r.Cookie(g.cookieName); err == nil && c.Value != "" {
		return g.sessions.Resolve(ctx, c.Value, SourceCookie)
	}

	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
		if token != "" {
			return g.sessions.Resolve(ctx, token, SourceBearer)
		}
	}

	return nil, nil
}
