package identity

import (
	"fmt"

	"github.com/markato-labs/markato/internal/platform/httpx"
)

// OwnerOrAdmin allows the resource owner and any admin. The services call it
// after loading the owning resource, so the not-found case has already been
// answered by then.
func OwnerOrAdmin(id Identity, ownerID string) error {
	if id.UserID == ownerID || id.IsAdmin() {
		return nil
	}
	return fmt.Errorf("%w: you are not authorized to access this resource", httpx.ErrForbidden)
}

// RequireRoles allows only the listed roles, with no per-resource ownership
// check. Used for role-gated actions such as order status updates and
// payment refunds.
func RequireRoles(id Identity, roles ...Role) error {
	for _, role := range roles {
		if id.Role == role {
			return nil
		}
	}
	return fmt.Errorf("%w: access denied for role", httpx.ErrForbidden)
}
