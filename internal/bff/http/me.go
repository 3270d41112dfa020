package http

import (
	"net/http"

	"github.com/tablefare/bff/pkg/httpx"
)

// MeHandler echoes the resolved identity back to the frontend so it can
// render permission-aware UI without guessing.
type MeHandler struct{}

type meResponse struct {
	ID          string   `json:"id"`
	Permissions []string `json:"permissions"`
	Source      string   `json:"source"`
}

func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())
	if id == nil {
		writeUnauthenticated(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, meResponse{
		ID:          id.ID,
		Permissions: id.Permissions.Names(),
		Source:      string(id.Source),
	})
}
