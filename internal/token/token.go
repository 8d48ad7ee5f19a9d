// Package token issues and verifies the bearer credentials accepted at the
// gateway. Verification happens exactly once, at the edge; past that point
// the services trust the identity headers only.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/markato-labs/markato/internal/identity"
)

// ErrUnauthorized is the single failure surfaced for any bad credential.
// Missing, malformed, tampered and expired tokens are deliberately
// indistinguishable to callers; the detail may be logged, never returned.
var ErrUnauthorized = errors.New("token: unauthorized")

// Claims is the signed claim set embedded in a credential.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Manager signs and verifies credentials against a shared secret. It is
// read-only after construction and safe for concurrent use.
type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewManager constructs a Manager. ttl governs the expiry stamped at
// issuance; verification uses the expiry embedded in the token itself.
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, issuer: "markato"}
}

// Issue signs a credential for the given subject.
func (m *Manager) Issue(userID string, role identity.Role) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify checks the signature and expiry of a raw credential and returns the
// embedded identity. It is a pure function of (credential, secret, now).
func (m *Manager) Verify(raw string) (identity.Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return identity.Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	role, err := identity.ParseRole(claims.Role)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.UserID == "" {
		return identity.Identity{}, fmt.Errorf("%w: empty subject", ErrUnauthorized)
	}
	return identity.Identity{UserID: claims.UserID, Role: role}, nil
}
