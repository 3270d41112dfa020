// Package csrftoken issues and verifies the signed tokens that prove a
// state-changing request came from a page we served. Tokens are compact
// HMAC-signed JWTs: stateless, URL-safe, and bounded by an expiry. A
// token may optionally be bound to a subject (user id), in which case it
// only verifies for that subject; an unbound token verifies for anyone.
package csrftoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tablefare/bff/pkg/idx"
)

// Default token TTLs. Session-scoped tokens live long enough to cover a
// form-heavy admin session; challenge tokens are single-request.
const (
	DefaultSessionTTL   = time.Hour
	DefaultChallengeTTL = 10 * time.Minute
)

// MinSecretLen is the minimum accepted signing secret length in bytes.
// HS256 secrets below the hash output size weaken the MAC.
const MinSecretLen = 32

var (
	// ErrInvalid reports a token that failed to parse or whose signature
	// does not verify. Callers get no further detail.
	ErrInvalid = errors.New("csrftoken: invalid token")

	// ErrExpired reports a structurally valid token past its expiry.
	ErrExpired = errors.New("csrftoken: token expired")

	// ErrSubjectMismatch reports a subject-bound token presented by a
	// different subject.
	ErrSubjectMismatch = errors.New("csrftoken: token subject mismatch")
)

// Signer issues and verifies CSRF tokens with a single process-wide
// secret. The secret is fixed at construction; rotating it invalidates
// every outstanding token, which is the accepted operational trade for
// keeping tokens stateless.
type Signer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// New creates a Signer. The secret must be at least MinSecretLen bytes.
func New(secret []byte, issuer string) (*Signer, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("csrftoken: secret too short: %d bytes (min %d)", len(secret), MinSecretLen)
	}
	if issuer == "" {
		return nil, errors.New("csrftoken: issuer is required")
	}
	return &Signer{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// Issue creates a signed token. An empty subject produces an unbound
// token that verifies for any caller; a non-empty subject binds the
// token to that caller. ttl must be positive.
func (s *Signer) Issue(subject string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("csrftoken: ttl must be positive, got %s", ttl)
	}

	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        idx.New().String(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("csrftoken: sign: %w", err)
	}
	return signed, nil
}

// Verify checks a token and fails closed: any parse error, signature
// mismatch, wrong algorithm, expiry in the past, or subject mismatch is
// an error. Signature comparison is constant-time (HMAC verification in
// golang-jwt). expectedSubject is the identity of the verifying caller;
// pass "" for an anonymous caller.
func (s *Signer) Verify(token, expectedSubject string) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}
		return ErrInvalid
	}

	// An unbound token (no subject) is the global anti-forgery token and
	// verifies for any caller. A bound token must be presented by the
	// subject it was issued to.
	if claims.Subject != "" && claims.Subject != expectedSubject {
		return ErrSubjectMismatch
	}
	return nil
}

func (s *Signer) keyFunc(*jwt.Token) (any, error) {
	return s.secret, nil
}
