// Package cryptox holds the small crypto helpers this service needs.
package cryptox

import (
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Fingerprinter produces deterministic keyed fingerprints of tokens.
// A fingerprint allows membership checks against a stored set without
// keeping the original token value, and the key prevents anyone holding
// a dump of the set from testing candidate tokens offline.
type Fingerprinter struct {
	key []byte
}

// NewFingerprinter creates a Fingerprinter from a secret key. The key
// must be at most 64 bytes (blake2b key limit). An empty key produces
// unkeyed fingerprints; only use that in tests.
func NewFingerprinter(key []byte) (*Fingerprinter, error) {
	if len(key) > 64 {
		return nil, fmt.Errorf("fingerprint key too long: %d bytes (max 64)", len(key))
	}
	return &Fingerprinter{key: append([]byte(nil), key...)}, nil
}

// Fingerprint returns the keyed blake2b-256 fingerprint of a token as a
// base64url-encoded string (43 chars). Output length is fixed regardless
// of token length.
func (f *Fingerprinter) Fingerprint(token string) string {
	h, err := blake2b.New256(f.key)
	if err != nil {
		// Key length is validated at construction; New256 cannot fail here.
		panic(fmt.Sprintf("cryptox: blake2b init: %v", err))
	}
	h.Write([]byte(token))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
