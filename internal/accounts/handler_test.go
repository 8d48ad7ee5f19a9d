package accounts_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/markato-labs/markato/internal/accounts"
	"github.com/markato-labs/markato/internal/identity"
	"github.com/markato-labs/markato/internal/platform/httpx"
	"github.com/markato-labs/markato/internal/token"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubRepo struct {
	byEmail map[string]*accounts.User
	byID    map[string]*accounts.User
	created []accounts.User
}

func newStubRepo() *stubRepo {
	return &stubRepo{byEmail: map[string]*accounts.User{}, byID: map[string]*accounts.User{}}
}

func (s *stubRepo) add(user accounts.User) {
	u := user
	s.byEmail[u.Email] = &u
	s.byID[u.ID] = &u
}

func (s *stubRepo) Create(ctx context.Context, user accounts.User) error {
	if _, exists := s.byEmail[user.Email]; exists {
		return fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
	}
	s.created = append(s.created, user)
	s.add(user)
	return nil
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*accounts.User, error) {
	user, ok := s.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("%w: user", httpx.ErrNotFound)
	}
	return user, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id string) (*accounts.User, error) {
	user, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: user", httpx.ErrNotFound)
	}
	return user, nil
}

func (s *stubRepo) UpdateProfile(ctx context.Context, id string, name, email *string) (*accounts.User, error) {
	user, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: user", httpx.ErrNotFound)
	}
	if name != nil {
		user.Name = *name
	}
	if email != nil {
		user.Email = *email
	}
	return user, nil
}

func newRouter(t *testing.T, repo accounts.Repository) (chi.Router, *token.Manager) {
	t.Helper()
	manager := token.NewManager("test-secret", time.Hour)
	handler := accounts.NewHandler(testLogger(), accounts.NewService(repo, manager))
	router := chi.NewRouter()
	handler.MountRoutes(router)
	return router, manager
}

func doJSON(router http.Handler, method, target string, body string, id *identity.Identity) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if id != nil {
		id.Apply(req.Header)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestRegister(t *testing.T) {
	repo := newStubRepo()
	router, manager := newRouter(t, repo)

	res := doJSON(router, http.MethodPost, "/auth/register",
		`{"name":"Ada","email":"ada@example.com","password":"hunter2hunter2","role":"Vendor"}`, nil)

	require.Equal(t, http.StatusCreated, res.Code)

	var result accounts.AuthResult
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &result))
	assert.Equal(t, "ada@example.com", result.User.Email)
	assert.Equal(t, "Vendor", result.User.Role)
	assert.NotEmpty(t, result.User.ID)

	// The issued token must verify back to the same subject.
	id, err := manager.Verify(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, id.UserID)
	assert.Equal(t, identity.RoleVendor, id.Role)

	// Password is stored hashed, never verbatim.
	require.Len(t, repo.created, 1)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.created[0].PasswordHash), []byte("hunter2hunter2")))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newStubRepo()
	repo.add(accounts.User{ID: "u-1", Email: "ada@example.com", Role: identity.RoleCustomer})
	router, _ := newRouter(t, repo)

	res := doJSON(router, http.MethodPost, "/auth/register",
		`{"name":"Ada","email":"ada@example.com","password":"hunter2hunter2","role":"Customer"}`, nil)

	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	router, _ := newRouter(t, newStubRepo())

	res := doJSON(router, http.MethodPost, "/auth/register",
		`{"name":"Eve","email":"eve@example.com","password":"hunter2hunter2","role":"Admin"}`, nil)

	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestRegisterValidation(t *testing.T) {
	router, _ := newRouter(t, newStubRepo())

	res := doJSON(router, http.MethodPost, "/auth/register",
		`{"name":"A","email":"nope","password":"short","role":"Customer"}`, nil)

	require.Equal(t, http.StatusBadRequest, res.Code)
	var body httpx.ErrorBody
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Contains(t, body.Fields, "Email")
	assert.Contains(t, body.Fields, "Password")
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := newStubRepo()
	repo.add(accounts.User{ID: "u-1", Name: "Ada", Email: "ada@example.com", PasswordHash: string(hash), Role: identity.RoleCustomer})
	router, _ := newRouter(t, repo)

	res := doJSON(router, http.MethodPost, "/auth/login",
		`{"email":"ada@example.com","password":"correct horse"}`, nil)

	require.Equal(t, http.StatusOK, res.Code)
	var result accounts.AuthResult
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &result))
	assert.Equal(t, "u-1", result.User.ID)
	assert.NotEmpty(t, result.Token)
}

func TestLoginFailureIsUniform(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := newStubRepo()
	repo.add(accounts.User{ID: "u-1", Email: "ada@example.com", PasswordHash: string(hash), Role: identity.RoleCustomer})
	router, _ := newRouter(t, repo)

	wrongPassword := doJSON(router, http.MethodPost, "/auth/login",
		`{"email":"ada@example.com","password":"wrong"}`, nil)
	unknownEmail := doJSON(router, http.MethodPost, "/auth/login",
		`{"email":"bob@example.com","password":"whatever"}`, nil)

	// Unknown email and wrong password must be indistinguishable.
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestRefreshRequiresIdentity(t *testing.T) {
	repo := newStubRepo()
	repo.add(accounts.User{ID: "u-1", Email: "ada@example.com", Role: identity.RoleCustomer})
	router, manager := newRouter(t, repo)

	res := doJSON(router, http.MethodPost, "/auth/refresh", "", nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	id := identity.Identity{UserID: "u-1", Role: identity.RoleCustomer}
	res = doJSON(router, http.MethodPost, "/auth/refresh", "", &id)
	require.Equal(t, http.StatusOK, res.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	verified, err := manager.Verify(body["token"])
	require.NoError(t, err)
	assert.Equal(t, "u-1", verified.UserID)
}

func TestProfile(t *testing.T) {
	repo := newStubRepo()
	repo.add(accounts.User{ID: "u-1", Name: "Ada", Email: "ada@example.com", Role: identity.RoleVendor})
	router, _ := newRouter(t, repo)
	id := identity.Identity{UserID: "u-1", Role: identity.RoleVendor}

	res := doJSON(router, http.MethodGet, "/users/profile", "", &id)
	require.Equal(t, http.StatusOK, res.Code)
	var profile accounts.Profile
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &profile))
	assert.Equal(t, "Ada", profile.Name)

	res = doJSON(router, http.MethodPut, "/users/profile", `{"name":"Ada L"}`, &id)
	require.Equal(t, http.StatusOK, res.Code)
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &profile))
	assert.Equal(t, "Ada L", profile.Name)
	assert.Equal(t, "ada@example.com", profile.Email)
}
