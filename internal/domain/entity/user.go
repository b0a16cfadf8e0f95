// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// User is the credential record for one account.
type User struct {
	ID               uuid.UUID // UUIDv7 assigned at registration.
	Email            string    // Unique login identifier.
	Name             string    // Display name.
	PasswordHash     string    // bcrypt hash of the password.
	RefreshTokenHash *string   // bcrypt of the digest of the one live refresh token; nil when no session is active.
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PublicProfile is the outward representation of a user. It never carries hash material.
type PublicProfile struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Public strips credential fields from the user.
func (u *User) Public() *PublicProfile {
	if u == nil {
		return nil
	}

	return &PublicProfile{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// HasActiveSession reports whether a refresh token is currently outstanding.
func (u *User) HasActiveSession() bool {
	return u.RefreshTokenHash != nil && *u.RefreshTokenHash != ""
}
