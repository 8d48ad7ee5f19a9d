package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/markato-labs/markato/internal/app"
)

func testTable() *Table {
	return NewTable(&app.Config{
		AccountsURL:      "http://accounts",
		CatalogURL:       "http://catalog",
		OrdersURL:        "http://orders",
		NotificationsURL: "http://notifications",
	})
}

func TestIsPublic(t *testing.T) {
	table := testTable()

	public := []string{
		"/auth/register",
		"/auth/login",
		"/products",
		"/products/a1b2",
		"/vendors",
		"/vendors/v-77",
		// The :vendorId wildcard also captures my-store, so the gateway
		// treats it as public and forwards it without identity headers.
		// The catalog service then rejects it; reaching my-store needs
		// a direct internal call.
		"/vendors/my-store",
	}
	for _, path := range public {
		assert.True(t, table.IsPublic(path), path)
	}

	protected := []string{
		"/auth/refresh",
		"/users/profile",
		"/products/a1b2/extra",
		"/inventory/a1b2",
		"/orders",
		"/orders/o-1",
		"/payments/process",
		"/notifications",
	}
	for _, path := range protected {
		assert.False(t, table.IsPublic(path), path)
	}
}

func TestBackendResolution(t *testing.T) {
	table := testTable()

	cases := map[string]string{
		"/auth/login":          "accounts",
		"/users/profile":       "accounts",
		"/products":            "catalog",
		"/vendors/my-store":    "catalog",
		"/inventory/logs/p-1":  "catalog",
		"/orders/o-1":          "orders",
		"/payments/refund/p-1": "orders",
		"/notifications":       "notifications",
	}
	for path, name := range cases {
		backend, ok := table.Backend(path)
		assert.True(t, ok, path)
		assert.Equal(t, name, backend.Name, path)
	}

	_, ok := table.Backend("/metrics")
	assert.False(t, ok)

	// Prefix matching is segment-aware: /ordersx is not the orders service.
	_, ok = table.Backend("/ordersx")
	assert.False(t, ok)
}

func TestMatchPattern(t *testing.T) {
	assert.True(t, matchPattern("/products/:id", "/products/123"))
	assert.False(t, matchPattern("/products/:id", "/products"))
	assert.False(t, matchPattern("/products/:id", "/products/123/reviews"))
	assert.True(t, matchPattern("/products", "/products/"))
}
