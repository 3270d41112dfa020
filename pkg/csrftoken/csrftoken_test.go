package csrftoken

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestSigner(t *testing.T) *Signer {
	t.Helper()

	s, err := New(testSecret, "bff-test")
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	t.Run("rejects short secret", func(t *testing.T) {
		_, err := New([]byte("too-short"), "bff-test")
		require.Error(t, err)
	})

	t.Run("rejects empty issuer", func(t *testing.T) {
		_, err := New(testSecret, "")
		require.Error(t, err)
	})
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	s := newTestSigner(t)

	t.Run("bound token verifies for its subject", func(t *testing.T) {
		token, err := s.Issue("u1", DefaultSessionTTL)
		require.NoError(t, err)
		require.NoError(t, s.Verify(token, "u1"))
	})

	t.Run("unbound token verifies for any caller", func(t *testing.T) {
		token, err := s.Issue("", DefaultSessionTTL)
		require.NoError(t, err)

		require.NoError(t, s.Verify(token, ""))
		require.NoError(t, s.Verify(token, "u1"))
		require.NoError(t, s.Verify(token, "someone-else"))
	})
}

func TestVerify_SubjectBinding(t *testing.T) {
	s := newTestSigner(t)

	token, err := s.Issue("u2", DefaultSessionTTL)
	require.NoError(t, err)

	require.ErrorIs(t, s.Verify(token, "u1"), ErrSubjectMismatch)
	require.ErrorIs(t, s.Verify(token, ""), ErrSubjectMismatch)
	require.NoError(t, s.Verify(token, "u2"))
}

func TestVerify_Expiry(t *testing.T) {
	s := newTestSigner(t)

	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }

	token, err := s.Issue("u1", time.Hour)
	require.NoError(t, err)

	// Still valid just before expiry.
	s.now = func() time.Time { return issued.Add(59 * time.Minute) }
	require.NoError(t, s.Verify(token, "u1"))

	// Invalid once the TTL has elapsed.
	s.now = func() time.Time { return issued.Add(61 * time.Minute) }
	require.ErrorIs(t, s.Verify(token, "u1"), ErrExpired)
}

func TestVerify_Tampering(t *testing.T) {
	s := newTestSigner(t)

	token, err := s.Issue("u1", DefaultSessionTTL)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	flip := func(seg string) string {
		b := []byte(seg)
		if b[0] == 'A' {
			b[0] = 'B'
		} else {
			b[0] = 'A'
		}
		return string(b)
	}

	t.Run("tampered payload", func(t *testing.T) {
		bad := parts[0] + "." + flip(parts[1]) + "." + parts[2]
		require.ErrorIs(t, s.Verify(bad, "u1"), ErrInvalid)
	})

	t.Run("tampered signature", func(t *testing.T) {
		bad := parts[0] + "." + parts[1] + "." + flip(parts[2])
		require.ErrorIs(t, s.Verify(bad, "u1"), ErrInvalid)
	})

	t.Run("truncated token", func(t *testing.T) {
		require.ErrorIs(t, s.Verify(token[:len(token)/2], "u1"), ErrInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		require.ErrorIs(t, s.Verify("not-a-token", "u1"), ErrInvalid)
	})
}

func TestVerify_WrongSecret(t *testing.T) {
	s := newTestSigner(t)
	other, err := New([]byte("ffffffffffffffffffffffffffffffff"), "bff-test")
	require.NoError(t, err)

	token, err := s.Issue("u1", DefaultSessionTTL)
	require.NoError(t, err)

	require.ErrorIs(t, other.Verify(token, "u1"), ErrInvalid)
}

func TestVerify_WrongIssuer(t *testing.T) {
	s := newTestSigner(t)
	other, err := New(testSecret, "different-service")
	require.NoError(t, err)

	token, err := other.Issue("u1", DefaultSessionTTL)
	require.NoError(t, err)

	require.ErrorIs(t, s.Verify(token, "u1"), ErrInvalid)
}

func TestIssue_RejectsNonPositiveTTL(t *testing.T) {
	s := newTestSigner(t)

	_, err := s.Issue("u1", 0)
	require.Error(t, err)

	_, err = s.Issue("u1", -time.Minute)
	require.Error(t, err)
}
