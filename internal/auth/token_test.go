package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T, secret string) *TokenIssuer {
	t.Helper()

	issuer, err := NewTokenIssuer(secret)
	require.NoError(t, err)

	return issuer
}

func TestNewTokenIssuer_EmptySecret(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	_, err := NewTokenIssuer("")
	assert.ErrorIs(t, err, ErrSecretEmpty)
}

func TestTokenIssuer_IssueVerifyRoundTrip(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	issuer := newTestIssuer(t, "test-secret")
	actor := Actor{UserID: "u1", Email: "admin@test.com", Role: "admin"}

	token, err := issuer.Issue(actor)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	verified, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, &actor, verified)
}

func TestTokenIssuer_RejectsWrongSecret(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	token, err := newTestIssuer(t, "secret-a").Issue(Actor{UserID: "u1"})
	require.NoError(t, err)

	_, err = newTestIssuer(t, "secret-b").Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenIssuer_RejectsGarbage(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	issuer := newTestIssuer(t, "test-secret")

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		_, err := issuer.Verify(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	}
}

func TestTokenIssuer_RejectsExpiredToken(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	issuer := newTestIssuer(t, "test-secret")
	issued := time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC)

	issuer.now = func() time.Time { return issued }

	token, err := issuer.Issue(Actor{UserID: "u1", Email: "user@test.com", Role: "user"})
	require.NoError(t, err)

	// Still valid just before the TTL runs out.
	issuer.now = func() time.Time { return issued.Add(defaultTokenTTL - time.Minute) }
	_, err = issuer.Verify(token)
	require.NoError(t, err)

	issuer.now = func() time.Time { return issued.Add(defaultTokenTTL + time.Minute) }
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenIssuer_RejectsUnsignedToken(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	issuer := newTestIssuer(t, "test-secret")

	// alg=none is never acceptable.
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Email: "admin@test.com",
		Role:  "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Verify(unsigned)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
