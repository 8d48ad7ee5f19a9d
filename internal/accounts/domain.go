package accounts

import (
	"time"

	"github.com/markato-labs/markato/internal/identity"
)

// User represents a marketplace account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         identity.Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the client-facing view of a user, without credentials.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Profile strips the password hash for responses.
func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Role)}
}
