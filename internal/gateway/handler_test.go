package gateway_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markato-labs/markato/internal/app"
	"github.com/markato-labs/markato/internal/gateway"
	"github.com/markato-labs/markato/internal/identity"
	"github.com/markato-labs/markato/internal/token"
)

type downstream struct {
	server *httptest.Server
	calls  atomic.Int64

	lastUserID   string
	lastRole     string
	lastAuth     string
	lastPath     string
	lastQuery    string
	lastBody     string
	status       int
	responseBody string
}

func newDownstream(status int, body string) *downstream {
	d := &downstream{status: status, responseBody: body}
	d.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.calls.Add(1)
		d.lastUserID = r.Header.Get(identity.HeaderUserID)
		d.lastRole = r.Header.Get(identity.HeaderUserRole)
		d.lastAuth = r.Header.Get("Authorization")
		d.lastPath = r.URL.Path
		d.lastQuery = r.URL.RawQuery
		raw, _ := io.ReadAll(r.Body)
		d.lastBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(d.status)
		_, _ = w.Write([]byte(d.responseBody))
	}))
	return d
}

type testGateway struct {
	router   chi.Router
	manager  *token.Manager
	catalog  *downstream
	orders   *downstream
	accounts *downstream
	notifs   *downstream
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	catalog := newDownstream(http.StatusOK, `{"ok":true}`)
	orders := newDownstream(http.StatusOK, `{"ok":true}`)
	accounts := newDownstream(http.StatusOK, `{"ok":true}`)
	notifs := newDownstream(http.StatusOK, `{"ok":true}`)
	t.Cleanup(catalog.server.Close)
	t.Cleanup(orders.server.Close)
	t.Cleanup(accounts.server.Close)
	t.Cleanup(notifs.server.Close)

	cfg := &app.Config{
		AccountsURL:      accounts.server.URL,
		CatalogURL:       catalog.server.URL,
		OrdersURL:        orders.server.URL,
		NotificationsURL: notifs.server.URL,
	}

	manager := token.NewManager("test-secret", time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := gateway.NewHandler(logger, manager, gateway.NewTable(cfg), gateway.NewProxy(logger, 5*time.Second))

	router := chi.NewRouter()
	handler.MountRoutes(router)

	return &testGateway{
		router:   router,
		manager:  manager,
		catalog:  catalog,
		orders:   orders,
		accounts: accounts,
		notifs:   notifs,
	}
}

func (g *testGateway) do(t *testing.T, method, target, bearer string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res := httptest.NewRecorder()
	g.router.ServeHTTP(res, req)
	return res
}

func TestPublicRouteSkipsVerification(t *testing.T) {
	g := newTestGateway(t)

	// A garbage token on a public route must not block the request: the
	// verifier is never consulted for public paths.
	res := g.do(t, http.MethodGet, "/products", "not-even-a-jwt", nil)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, int64(1), g.catalog.calls.Load())
	assert.Empty(t, g.catalog.lastUserID)
	assert.Empty(t, g.catalog.lastAuth)
}

func TestPublicWildcardPattern(t *testing.T) {
	g := newTestGateway(t)

	res := g.do(t, http.MethodGet, "/products/abc-123", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "/products/abc-123", g.catalog.lastPath)

	// The wildcard covers exactly one segment: a deeper path is protected.
	res = g.do(t, http.MethodGet, "/inventory/abc-123", "", nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestMyStoreMatchesPublicVendorWildcard(t *testing.T) {
	g := newTestGateway(t)

	// /vendors/my-store falls under the /vendors/:vendorId public
	// pattern, so the request forwards without identity headers even
	// when the caller presents a valid token. The catalog service sees
	// an anonymous request and denies it.
	raw, err := g.manager.Issue("user-42", identity.RoleVendor)
	require.NoError(t, err)

	res := g.do(t, http.MethodGet, "/vendors/my-store", raw, nil)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "/vendors/my-store", g.catalog.lastPath)
	assert.Empty(t, g.catalog.lastUserID)
	assert.Empty(t, g.catalog.lastRole)
	assert.Empty(t, g.catalog.lastAuth)
}

func TestProtectedRouteWithoutCredential(t *testing.T) {
	g := newTestGateway(t)

	res := g.do(t, http.MethodGet, "/orders", "", nil)

	require.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Contains(t, res.Body.String(), "message")
	// 401 is decided at the edge: the service must see zero requests.
	assert.Equal(t, int64(0), g.orders.calls.Load())
}

func TestProtectedRouteWithInvalidToken(t *testing.T) {
	g := newTestGateway(t)

	expired := token.NewManager("test-secret", -time.Hour)
	raw, err := expired.Issue("u-1", identity.RoleCustomer)
	require.NoError(t, err)

	tampered, err := g.manager.Issue("u-1", identity.RoleCustomer)
	require.NoError(t, err)
	tampered += "x"

	for _, bad := range []string{raw, tampered, "garbage"} {
		res := g.do(t, http.MethodGet, "/orders", bad, nil)
		require.Equal(t, http.StatusUnauthorized, res.Code)
	}
	assert.Equal(t, int64(0), g.orders.calls.Load())
}

func TestIdentityPropagation(t *testing.T) {
	g := newTestGateway(t)

	raw, err := g.manager.Issue("user-42", identity.RoleVendor)
	require.NoError(t, err)

	res := g.do(t, http.MethodPut, "/products/p-1", raw, strings.NewReader(`{"price":12.5}`))

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "user-42", g.catalog.lastUserID)
	assert.Equal(t, "Vendor", g.catalog.lastRole)
	assert.Equal(t, `{"price":12.5}`, g.catalog.lastBody)
	// The bearer token stops at the gateway.
	assert.Empty(t, g.catalog.lastAuth)
}

func TestQueryStringPassthrough(t *testing.T) {
	g := newTestGateway(t)

	res := g.do(t, http.MethodGet, "/products?page=2&search=tea", "", nil)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "page=2&search=tea", g.catalog.lastQuery)
}

func TestDownstreamErrorPassesThrough(t *testing.T) {
	g := newTestGateway(t)
	g.orders.status = http.StatusForbidden
	g.orders.responseBody = `{"error":"you are not authorized"}`

	raw, err := g.manager.Issue("user-1", identity.RoleCustomer)
	require.NoError(t, err)

	res := g.do(t, http.MethodDelete, "/orders/o-9", raw, nil)

	require.Equal(t, http.StatusForbidden, res.Code)
	assert.JSONEq(t, `{"error":"you are not authorized"}`, res.Body.String())
}

func TestDownstreamUnreachable(t *testing.T) {
	g := newTestGateway(t)
	g.orders.server.Close()

	raw, err := g.manager.Issue("user-1", identity.RoleCustomer)
	require.NoError(t, err)

	res := g.do(t, http.MethodGet, "/orders", raw, nil)

	require.Equal(t, http.StatusBadGateway, res.Code)
	assert.Contains(t, res.Body.String(), "message")
}

func TestForwardingIsNotDeduplicated(t *testing.T) {
	g := newTestGateway(t)

	raw, err := g.manager.Issue("user-1", identity.RoleCustomer)
	require.NoError(t, err)

	for range 2 {
		res := g.do(t, http.MethodGet, "/orders", raw, nil)
		require.Equal(t, http.StatusOK, res.Code)
	}
	assert.Equal(t, int64(2), g.orders.calls.Load())
}

func TestNotificationPrefixStripped(t *testing.T) {
	g := newTestGateway(t)

	raw, err := g.manager.Issue("user-1", identity.RoleCustomer)
	require.NoError(t, err)

	res := g.do(t, http.MethodGet, "/notifications", raw, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "/", g.notifs.lastPath)

	res = g.do(t, http.MethodPut, "/notifications/n-1/read", raw, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "/n-1/read", g.notifs.lastPath)
}

func TestUnknownRoute(t *testing.T) {
	g := newTestGateway(t)

	res := g.do(t, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, res.Code)
}
