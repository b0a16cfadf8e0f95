// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"cookbook/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// RegisterInput defines the data required to register a new user.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,notblank,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,maxbytes=72"`
}

// LoginInput defines the data required for a user to log in.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenInput carries the refresh token presented by the client.
type RefreshTokenInput struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// --- Output DTOs ---

// AuthOutput is returned by Register, Login and RefreshToken. User is
// omitted on refresh.
type AuthOutput struct {
	AccessToken  string                `json:"accessToken"`
	RefreshToken string                `json:"refreshToken"`
	User         *entity.PublicProfile `json:"user,omitempty"`
}

// AuthUsecase defines the session lifecycle operations.
// This is the contract that the delivery layer (e.g., API handlers) will depend on.
type AuthUsecase interface {
	// Register creates an account and opens its first session.
	Register(ctx context.Context, input *RegisterInput) (*AuthOutput, error)

	// Login verifies credentials and replaces any previous session.
	Login(ctx context.Context, input *LoginInput) (*AuthOutput, error)

	// RefreshToken exchanges a live refresh token for a new pair. Each refresh
	// token can be exchanged at most once.
	RefreshToken(ctx context.Context, input *RefreshTokenInput) (*AuthOutput, error)

	// Logout clears the user's refresh slot. It is idempotent.
	Logout(ctx context.Context, userID uuid.UUID) error
}
