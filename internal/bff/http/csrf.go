package http

import (
	"net/http"

	"github.com/tablefare/bff/internal/bff/identity"
	"github.com/tablefare/bff/pkg/csrftoken"
	"github.com/tablefare/bff/pkg/httpx"
	"github.com/tablefare/bff/pkg/slogx"
)

// CSRFHandler issues CSRF tokens. Authenticated callers get tokens bound
// to their identity; anonymous callers get unbound tokens.
type CSRFHandler struct {
	Signer *csrftoken.Signer
	Gate   *identity.Gate

	CookieName   string
	CookieSecure bool
}

type csrfTokenResponse struct {
	Token string `json:"token"`
}

func (h *CSRFHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	subject := ""
	id, err := h.Gate.Resolve(r)
	if err != nil {
		// Session lookup failures degrade to an unbound token rather
		// than blocking anonymous flows.
		log.Warn("session resolution failed, issuing unbound token", "error", err)
	} else if id != nil {
		subject = id.ID
	}

	token, err := h.Signer.Issue(subject, csrftoken.DefaultSessionTTL)
	if err != nil {
		log.Error("csrf token signing failed", "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorResponse{
			Error: "internal_error",
			Code:  httpx.CodeInternal,
		})
		return
	}

	// Readable cookie: the frontend copies it into the CSRF header on
	// mutations (double-submit).
	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(csrftoken.DefaultSessionTTL.Seconds()),
		SameSite: http.SameSiteStrictMode,
		Secure:   h.CookieSecure,
		HttpOnly: false,
	})

	httpx.WriteJSON(w, http.StatusOK, csrfTokenResponse{Token: token})
}
