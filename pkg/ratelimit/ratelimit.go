// Package ratelimit bounds request counts per identity key over fixed
// time windows. A window admits at most Limit requests; once exceeded,
// further requests are rejected with a deterministic RetryAfter equal to
// the time remaining until the window resets.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable reports a counter store that could not be reached.
var ErrUnavailable = errors.New("ratelimit: store unavailable")

// Policy is the (limit, window) pair applied to one call. Policies are
// per-route, not global: a limiter instance serves any number of
// distinct policies keyed by route name.
type Policy struct {
	// Limit is the number of requests admitted per window.
	Limit int
	// Window is the counting interval.
	Window time.Duration
	// FailClosed rejects requests when the counter store is
	// unreachable instead of admitting them uncounted. Set it on
	// policies guarding unauthenticated state-changing endpoints,
	// where an uncounted admit defeats the limit's purpose.
	FailClosed bool
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed bool
	// Remaining is the number of requests left in the current window.
	Remaining int
	// RetryAfter is how long until the window resets. Only meaningful
	// when Allowed is false.
	RetryAfter time.Duration
}

// Limiter counts requests per identity key. Allow is atomic per key:
// concurrent calls for one key are linearizable, and the admitted count
// within a window never exceeds the policy limit. Keys are independent.
type Limiter interface {
	Allow(ctx context.Context, key string, p Policy) (Decision, error)
}
