// Package replay rejects reuse of single-use tokens. A token is consumed
// at most once within its TTL window; a second consumption attempt fails
// with ErrReplayed. Only a fixed-length keyed fingerprint of the token is
// stored, never the token itself.
package replay

import (
	"context"
	"errors"
	"time"

	"github.com/tablefare/bff/pkg/cryptox"
)

var (
	// ErrReplayed reports a token that has already been consumed.
	ErrReplayed = errors.New("replay: token already consumed")

	// ErrUnavailable reports a store that could not be reached. Callers
	// must treat this as a hard failure, not as "not consumed".
	ErrUnavailable = errors.New("replay: store unavailable")
)

// Store tracks consumed token fingerprints. ConsumeOnce must be atomic
// per fingerprint: of any number of concurrent calls with the same
// fingerprint, exactly one succeeds and the rest return ErrReplayed.
// An entry whose TTL has elapsed is absent, whether or not it has been
// physically removed yet.
type Store interface {
	ConsumeOnce(ctx context.Context, fingerprint string, ttl time.Duration) error
}

// Guard fingerprints tokens and consumes them against a Store. The
// fingerprint key keeps a leaked store dump from being matched against
// candidate tokens.
type Guard struct {
	store Store
	fp    *cryptox.Fingerprinter
}

func NewGuard(store Store, fp *cryptox.Fingerprinter) *Guard {
	return &Guard{store: store, fp: fp}
}

// ConsumeOnce marks token as used for ttl. The first call for a given
// token succeeds; subsequent calls within ttl return ErrReplayed.
func (g *Guard) ConsumeOnce(ctx context.Context, token string, ttl time.Duration) error {
	return g.store.ConsumeOnce(ctx, g.fp.Fingerprint(token), ttl)
}
