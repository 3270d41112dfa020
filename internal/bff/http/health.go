package http

import (
	"net/http"
	"time"

	"github.com/tablefare/bff/internal/bff/proxy"
	"github.com/tablefare/bff/pkg/httpx"
)

type healthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// LivezHandler reports process liveness. It never touches dependencies.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
		})
	}
}

// ReadyzHandler reports readiness to serve traffic, probing the upstream
// through the proxy. A missing upstream degrades the response to 503.
func ReadyzHandler(startTime time.Time, version string, p *proxy.Proxy, plan proxy.Plan) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
			Checks:  map[string]string{"upstream": "ok"},
		}

		probe, err := http.NewRequestWithContext(r.Context(), http.MethodGet, "/", nil)
		if err == nil {
			_, err = p.Forward(r.Context(), probe, plan, "")
		}
		if err != nil {
			resp.Status = "degraded"
			resp.Checks["upstream"] = "unreachable"
			httpx.WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, resp)
	}
}
