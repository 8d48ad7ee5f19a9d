// Package identity carries the verified caller identity from the gateway to
// the internal services via trust headers, and hosts the authorization
// helpers those services share.
//
// The headers have no integrity protection of their own. They are
// trustworthy only because the gateway is the sole network path to the
// services; deployments must enforce that isolation.
package identity

import (
	"errors"
	"net/http"
)

// Trust header names set by the gateway after verifying a bearer token.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// ErrMissingIdentity indicates the trust headers were absent or invalid on a
// request that should only have arrived through the gateway.
var ErrMissingIdentity = errors.New("identity: trust headers missing")

// Identity is the verified caller as propagated by the gateway.
type Identity struct {
	UserID string
	Role   Role
}

// FromHeaders reads the trust header set from a request. Both headers must
// be present and the role must parse; anything else is ErrMissingIdentity,
// since a partial set means the request did not come through the gateway.
func FromHeaders(r *http.Request) (Identity, error) {
	userID := r.Header.Get(HeaderUserID)
	rawRole := r.Header.Get(HeaderUserRole)
	if userID == "" || rawRole == "" {
		return Identity{}, ErrMissingIdentity
	}
	role, err := ParseRole(rawRole)
	if err != nil {
		return Identity{}, ErrMissingIdentity
	}
	return Identity{UserID: userID, Role: role}, nil
}

// Apply stamps the trust headers onto an outbound request.
func (id Identity) Apply(h http.Header) {
	h.Set(HeaderUserID, id.UserID)
	h.Set(HeaderUserRole, string(id.Role))
}

// IsAdmin reports whether the identity carries the admin role.
func (id Identity) IsAdmin() bool { return id.Role == RoleAdmin }
