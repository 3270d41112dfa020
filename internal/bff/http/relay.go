package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/tablefare/bff/internal/bff/proxy"
	"github.com/tablefare/bff/pkg/httpx"
)

// RelayHandler forwards the inbound request to the upstream according to
// a registered plan and writes the upstream's response back out. When
// PathParam is set, the named path value is appended to the plan's
// target path.
type RelayHandler struct {
	Proxy *proxy.Proxy
	Plan  proxy.Plan

	PathParam string
}

func (h *RelayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := ""
	if h.PathParam != "" {
		v := r.PathValue(h.PathParam)
		if !validPathParam(v) {
			httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorResponse{
				Error: "invalid_request",
			})
			return
		}
		target = h.Plan.TargetPath + "/" + url.PathEscape(v)
	}

	res, err := h.Proxy.Forward(r.Context(), r, h.Plan, target)
	if err != nil {
		writeProxyError(w, err)
		return
	}
	res.Write(w)
}

// validPathParam confines a captured path value to a single segment
// under the plan's target path. ServeMux decodes percent-escapes before
// capture, so %2e%2e and %2f arrive here as ".." and "/"; letting them
// through would have the outbound URL cleaned to a path outside the
// plan.
func validPathParam(v string) bool {
	if v == "" || v == "." || v == ".." {
		return false
	}
	return !strings.ContainsAny(v, "/\\")
}

// writeProxyError maps a normalized proxy failure to the wire. The body
// carries only the generic message and a correlation ID; the underlying
// cause stays in the logs.
func writeProxyError(w http.ResponseWriter, err error) {
	var perr *proxy.Error
	if errors.As(err, &perr) {
		httpx.WriteJSON(w, perr.Status, httpx.ErrorResponse{
			Error:         "upstream_unavailable",
			Code:          httpx.CodeUpstream,
			Description:   perr.Message,
			CorrelationID: perr.CorrelationID,
		})
		return
	}
	httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorResponse{
		Error: "internal_error",
		Code:  httpx.CodeInternal,
	})
}
