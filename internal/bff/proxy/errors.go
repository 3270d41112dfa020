package proxy

import "fmt"

// Kind classifies a forwarding failure.
type Kind string

const (
	// KindTimeout: the upstream did not answer within the plan's timeout.
	KindTimeout Kind = "timeout"
	// KindNetwork: the upstream could not be reached or the connection broke.
	KindNetwork Kind = "network"
	// KindUpstream: the upstream answered with a server error (5xx).
	KindUpstream Kind = "upstream"
	// KindCanceled: the inbound client went away before the upstream answered.
	KindCanceled Kind = "canceled"
)

// Error is the stable failure shape every Forward error normalizes to.
// Message is safe to show to clients; the raw upstream detail is logged
// under CorrelationID, never carried here.
type Error struct {
	Kind          Kind
	Status        int // client-facing HTTP status
	Message       string
	CorrelationID string
}

func (e *Error) Error() string {
	return fmt.Sprintf("proxy: %s (status %d, correlation %s)", e.Kind, e.Status, e.CorrelationID)
}
