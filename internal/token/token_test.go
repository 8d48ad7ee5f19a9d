package token_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markato-labs/markato/internal/identity"
	"github.com/markato-labs/markato/internal/token"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	m := token.NewManager("secret", time.Hour)

	raw, err := m.Issue("user-1", identity.RoleVendor)
	require.NoError(t, err)

	id, err := m.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
	assert.Equal(t, identity.RoleVendor, id.Role)
}

func TestVerifyFailuresAreOpaque(t *testing.T) {
	m := token.NewManager("secret", time.Hour)

	valid, err := m.Issue("user-1", identity.RoleCustomer)
	require.NoError(t, err)

	expired, err := token.NewManager("secret", -time.Minute).Issue("user-1", identity.RoleCustomer)
	require.NoError(t, err)

	otherSecret, err := token.NewManager("other", time.Hour).Issue("user-1", identity.RoleCustomer)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"tampered":     valid + "x",
		"expired":      expired,
		"wrong secret": otherSecret,
	}
	for name, raw := range cases {
		_, err := m.Verify(raw)
		// Every failure mode collapses to the same sentinel so the caller
		// cannot distinguish expired from tampered from missing.
		assert.True(t, errors.Is(err, token.ErrUnauthorized), name)
	}
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	m := token.NewManager("secret", time.Hour)

	claims := token.Claims{
		UserID: "user-1",
		Role:   "Superuser",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = m.Verify(raw)
	assert.True(t, errors.Is(err, token.ErrUnauthorized))
}

func TestVerifyRejectsUnexpectedAlgorithm(t *testing.T) {
	m := token.NewManager("secret", time.Hour)

	// alg=none tokens must never pass, regardless of claims.
	claims := token.Claims{
		UserID: "user-1",
		Role:   "Admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(raw)
	assert.True(t, errors.Is(err, token.ErrUnauthorized))
}

func TestVerifyRejectsEmptySubject(t *testing.T) {
	m := token.NewManager("secret", time.Hour)

	raw, err := m.Issue("", identity.RoleAdmin)
	require.NoError(t, err)

	_, err = m.Verify(raw)
	assert.True(t, errors.Is(err, token.ErrUnauthorized))
}
