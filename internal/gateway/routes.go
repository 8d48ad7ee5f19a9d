package gateway

import (
	"strings"

	"github.com/markato-labs/markato/internal/app"
)

// Backend describes one internal service reachable through the gateway.
type Backend struct {
	Name    string
	BaseURL string
	// StripPrefix removes the leading path segment before forwarding, for
	// services that mount their routes at the root namespace.
	StripPrefix string
}

// Table is the static routing configuration: which backend owns a path
// prefix and which path patterns are public. Built once at startup and
// immutable afterwards.
type Table struct {
	backends []prefixBackend
	public   []string
}

type prefixBackend struct {
	prefix  string
	backend Backend
}

// publicPatterns lists the paths reachable without credentials. Matching is
// deliberately method-agnostic: a public pattern exempts every HTTP method
// on that path, mirroring the documented coarse-grained behavior.
var publicPatterns = []string{
	"/auth/register",
	"/auth/login",
	"/products",
	"/products/:productId",
	"/vendors",
	"/vendors/:vendorId",
}

// NewTable builds the routing table from configuration.
func NewTable(cfg *app.Config) *Table {
	return &Table{
		public: publicPatterns,
		backends: []prefixBackend{
			{prefix: "/auth", backend: Backend{Name: "accounts", BaseURL: cfg.AccountsURL}},
			{prefix: "/users", backend: Backend{Name: "accounts", BaseURL: cfg.AccountsURL}},
			{prefix: "/products", backend: Backend{Name: "catalog", BaseURL: cfg.CatalogURL}},
			{prefix: "/vendors", backend: Backend{Name: "catalog", BaseURL: cfg.CatalogURL}},
			{prefix: "/inventory", backend: Backend{Name: "catalog", BaseURL: cfg.CatalogURL}},
			{prefix: "/orders", backend: Backend{Name: "orders", BaseURL: cfg.OrdersURL}},
			{prefix: "/payments", backend: Backend{Name: "orders", BaseURL: cfg.OrdersURL}},
			{prefix: "/notifications", backend: Backend{Name: "notifications", BaseURL: cfg.NotificationsURL, StripPrefix: "/notifications"}},
		},
	}
}

// Backend resolves the owning internal service for a request path.
func (t *Table) Backend(path string) (Backend, bool) {
	for _, pb := range t.backends {
		if path == pb.prefix || strings.HasPrefix(path, pb.prefix+"/") {
			return pb.backend, true
		}
	}
	return Backend{}, false
}

// IsPublic reports whether a path matches one of the public patterns.
// Consulted before token verification; a public match skips it entirely.
func (t *Table) IsPublic(path string) bool {
	for _, pattern := range t.public {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern matches a path against a pattern with single-segment
// wildcards (":name" matches exactly one non-empty segment).
func matchPattern(pattern, path string) bool {
	p := splitSegments(pattern)
	s := splitSegments(path)
	if len(p) != len(s) {
		return false
	}
	for i := range p {
		if strings.HasPrefix(p[i], ":") {
			if s[i] == "" {
				return false
			}
			continue
		}
		if p[i] != s[i] {
			return false
		}
	}
	return true
}

func splitSegments(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}
