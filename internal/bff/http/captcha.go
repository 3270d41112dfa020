package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tablefare/bff/pkg/csrftoken"
	"github.com/tablefare/bff/pkg/httpx"
	"github.com/tablefare/bff/pkg/replay"
	"github.com/tablefare/bff/pkg/slogx"
)

// CaptchaHandler issues short-lived challenge tokens and verifies them
// exactly once. A verified token is burned in the replay guard, so a
// second submission of the same token is rejected even if its signature
// and expiry are still valid.
type CaptchaHandler struct {
	Signer *csrftoken.Signer
	Guard  *replay.Guard
}

type captchaChallengeResponse struct {
	Token string `json:"token"`
}

type captchaVerifyRequest struct {
	Token string `json:"token"`
}

func (h *CaptchaHandler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	token, err := h.Signer.Issue("", csrftoken.DefaultChallengeTTL)
	if err != nil {
		slogx.FromContext(r.Context()).Error("captcha challenge signing failed", "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorResponse{
			Error: "internal_error",
			Code:  httpx.CodeInternal,
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, captchaChallengeResponse{Token: token})
}

func (h *CaptchaHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req captchaVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorResponse{
			Error: "invalid_request",
		})
		return
	}

	// Signature and expiry first: the replay store only ever sees
	// tokens we minted.
	if err := h.Signer.Verify(req.Token, ""); err != nil {
		log.Warn("captcha token rejected", "error", err)
		httpx.WriteJSON(w, http.StatusForbidden, httpx.ErrorResponse{
			Error: "invalid_token",
		})
		return
	}

	err := h.Guard.ConsumeOnce(r.Context(), req.Token, csrftoken.DefaultChallengeTTL)
	switch {
	case errors.Is(err, replay.ErrReplayed):
		httpx.WriteJSON(w, http.StatusConflict, httpx.ErrorResponse{
			Error: "token_already_used",
			Code:  httpx.CodeReplay,
		})
		return
	case err != nil:
		// Closed on store failure: a token we cannot prove unused is
		// treated as unusable.
		log.Error("replay store unavailable", "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorResponse{
			Error: "internal_error",
			Code:  httpx.CodeInternal,
		})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
