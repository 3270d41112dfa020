package http

import (
	"context"
	"net/http"

	"github.com/tablefare/bff/internal/bff/identity"
	"github.com/tablefare/bff/pkg/csrftoken"
	"github.com/tablefare/bff/pkg/httpx"
	"github.com/tablefare/bff/pkg/slogx"
)

// CSRFHeader carries the double-submitted CSRF token on mutating requests.
const CSRFHeader = "X-Csrf-Token"

type ctxIdentityKey struct{}

func withIdentity(ctx context.Context, id *identity.Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey{}, id)
}

// IdentityFrom returns the authenticated identity, or nil when the
// request did not pass through RequireAuth.
func IdentityFrom(ctx context.Context) *identity.Identity {
	id, _ := ctx.Value(ctxIdentityKey{}).(*identity.Identity)
	return id
}

// RequireAuth resolves the caller's identity and rejects the request if
// none is found. The 401 body never distinguishes missing, expired or
// invalid credentials.
func RequireAuth(gate *identity.Gate) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := gate.Resolve(r)
			if err != nil {
				slogx.FromContext(r.Context()).Error("session resolution failed", "error", err)
				writeUnauthenticated(w)
				return
			}
			if id == nil {
				writeUnauthenticated(w)
				return
			}

			ctx := withIdentity(r.Context(), id)
			ctx = httpx.WithUserID(ctx, id.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission rejects authenticated callers whose permission set
// does not contain perm. Must run inside RequireAuth.
func RequirePermission(perm string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFrom(r.Context())
			if id == nil {
				writeUnauthenticated(w)
				return
			}
			if !id.Permissions.Has(perm) {
				httpx.WriteJSON(w, http.StatusForbidden, httpx.ErrorResponse{
					Error: "permission_denied",
					Code:  httpx.CodePermissionDenied,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCSRF verifies the CSRF header token against the caller. A token
// bound to a subject only passes for that subject; an unbound token
// passes for anyone, including anonymous callers.
func RequireCSRF(signer *csrftoken.Signer) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := ""
			if id := IdentityFrom(r.Context()); id != nil {
				subject = id.ID
			}

			token := r.Header.Get(CSRFHeader)
			if token == "" {
				writeCSRFRejection(w)
				return
			}
			if err := signer.Verify(token, subject); err != nil {
				slogx.FromContext(r.Context()).Warn("csrf verification failed", "error", err)
				writeCSRFRejection(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthenticated(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorResponse{
		Error: "unauthenticated",
	})
}

func writeCSRFRejection(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusForbidden, httpx.ErrorResponse{
		Error: "csrf_verification_failed",
		Code:  httpx.CodeCSRF,
	})
}
