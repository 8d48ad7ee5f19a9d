package identity

import "fmt"

// Role enumerates the closed set of marketplace roles.
type Role string

const (
	// RoleAdmin may operate on any resource except order cancellation.
	RoleAdmin Role = "Admin"
	// RoleVendor owns a store and its products.
	RoleVendor Role = "Vendor"
	// RoleCustomer places and cancels orders.
	RoleCustomer Role = "Customer"
)

// ParseRole validates a raw role string against the closed set. Unknown
// values are rejected here so authorization sites never see them.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleAdmin, RoleVendor, RoleCustomer:
		return Role(raw), nil
	default:
		return "", fmt.Errorf("identity: unknown role %q", raw)
	}
}

// String implements fmt.Stringer.
func (r Role) String() string { return string(r) }
