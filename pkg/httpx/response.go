package httpx

import (
	"encoding/json"
	"net/http"
)

// Machine-readable error codes surfaced to the frontend. The set is
// closed: handlers never invent codes inline.
const (
	CodeCSRF             = "CSRF"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeReplay           = "REPLAY"
	CodeUpstream         = "UPSTREAM"
	CodeInternal         = "INTERNAL"
)

// ErrorResponse is the JSON error shape for every rejection this
// service produces itself. Proxied upstream responses below 500 keep
// the upstream's own body.
type ErrorResponse struct {
	Error         string `json:"error"`
	Code          string `json:"code,omitempty"`
	Description   string `json:"error_description,omitempty"`
	RetryAfter    int    `json:"retry_after,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// This is commonly required for sensitive responses like tokens.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
