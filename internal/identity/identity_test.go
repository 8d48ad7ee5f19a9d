package identity_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markato-labs/markato/internal/identity"
	"github.com/markato-labs/markato/internal/platform/httpx"
)

func TestParseRole(t *testing.T) {
	for _, raw := range []string{"Admin", "Vendor", "Customer"} {
		role, err := identity.ParseRole(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, role.String())
	}

	for _, raw := range []string{"", "admin", "ADMIN", "Superuser"} {
		_, err := identity.ParseRole(raw)
		assert.Error(t, err, raw)
	}
}

func TestFromHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(identity.HeaderUserID, "u-1")
	req.Header.Set(identity.HeaderUserRole, "Customer")

	id, err := identity.FromHeaders(req)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.UserID)
	assert.Equal(t, identity.RoleCustomer, id.Role)
}

func TestFromHeadersMissingOrInvalid(t *testing.T) {
	cases := map[string]func(*http.Request){
		"no headers": func(r *http.Request) {},
		"id only": func(r *http.Request) {
			r.Header.Set(identity.HeaderUserID, "u-1")
		},
		"role only": func(r *http.Request) {
			r.Header.Set(identity.HeaderUserRole, "Customer")
		},
		"unknown role": func(r *http.Request) {
			r.Header.Set(identity.HeaderUserID, "u-1")
			r.Header.Set(identity.HeaderUserRole, "root")
		},
	}
	for name, setup := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		setup(req)
		_, err := identity.FromHeaders(req)
		assert.True(t, errors.Is(err, identity.ErrMissingIdentity), name)
	}
}

func TestRequireMiddleware(t *testing.T) {
	var seen identity.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = identity.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := identity.Require(next)

	// Missing headers answer 403, not 401: the gateway owns 401.
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, res.Body.String(), "error")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(identity.HeaderUserID, "u-9")
	req.Header.Set(identity.HeaderUserRole, "Admin")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "u-9", seen.UserID)
	assert.True(t, seen.IsAdmin())
}

func TestOwnerOrAdmin(t *testing.T) {
	owner := identity.Identity{UserID: "u-1", Role: identity.RoleVendor}
	stranger := identity.Identity{UserID: "u-2", Role: identity.RoleVendor}
	admin := identity.Identity{UserID: "u-3", Role: identity.RoleAdmin}

	assert.NoError(t, identity.OwnerOrAdmin(owner, "u-1"))
	assert.NoError(t, identity.OwnerOrAdmin(admin, "u-1"))
	err := identity.OwnerOrAdmin(stranger, "u-1")
	assert.True(t, errors.Is(err, httpx.ErrForbidden))
}

func TestRequireRoles(t *testing.T) {
	vendor := identity.Identity{UserID: "u-1", Role: identity.RoleVendor}

	assert.NoError(t, identity.RequireRoles(vendor, identity.RoleAdmin, identity.RoleVendor))
	err := identity.RequireRoles(vendor, identity.RoleAdmin)
	assert.True(t, errors.Is(err, httpx.ErrForbidden))
}
