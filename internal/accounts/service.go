package accounts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/markato-labs/markato/internal/identity"
)

// ErrInvalidCredentials indicates login failure. The same error covers an
// unknown email and a wrong password so neither case is distinguishable.
var ErrInvalidCredentials = errors.New("invalid credentials")

// TokenIssuer signs a credential for an authenticated user. The gateway's
// verifier shares the same secret.
type TokenIssuer interface {
	Issue(userID string, role identity.Role) (string, error)
}

// Service wraps account business rules.
type Service struct {
	repo   Repository
	issuer TokenIssuer
}

// NewService constructs a new Service.
func NewService(repo Repository, issuer TokenIssuer) *Service {
	return &Service{repo: repo, issuer: issuer}
}

// RegisterInput carries a registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     identity.Role
}

// AuthResult is returned from register and login.
type AuthResult struct {
	User  Profile `json:"user"`
	Token string  `json:"token"`
}

// Register creates an account and issues its first credential.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := User{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hash),
		Role:         input.Role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	tok, err := s.issuer.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user.Profile(), Token: tok}, nil
}

// Login validates email/password credentials and issues a credential.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	tok, err := s.issuer.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user.Profile(), Token: tok}, nil
}

// Refresh reissues a credential for an already-authenticated subject.
func (s *Service) Refresh(ctx context.Context, userID string) (string, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.issuer.Issue(user.ID, user.Role)
}

// GetProfile returns the caller's own profile.
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := user.Profile()
	return &profile, nil
}

// UpdateProfile applies a partial self-update.
func (s *Service) UpdateProfile(ctx context.Context, userID string, name, email *string) (*Profile, error) {
	user, err := s.repo.UpdateProfile(ctx, userID, name, email)
	if err != nil {
		return nil, err
	}
	profile := user.Profile()
	return &profile, nil
}
