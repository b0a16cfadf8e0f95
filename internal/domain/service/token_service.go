package service

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims defines the custom claims for the JWT tokens.
// UserID is derived from the registered subject after parsing.
type Claims struct {
	UserID uuid.UUID `json:"-"`
	Email  string    `json:"email"`
	Type   string    `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService defines the interface for generating and validating JWTs.
// This abstracts the details of token creation from the use cases.
type TokenService interface {
	// GenerateTokens creates a new access token and refresh token for a given user.
	GenerateTokens(userID uuid.UUID, email string) (accessToken string, refreshToken string, err error)

	// ValidateToken verifies signature, expiry and token type.
	ValidateToken(tokenString string, tokenType string) (*Claims, error)

	// HashToken returns a fixed-length digest of a token, short enough for bcrypt.
	HashToken(token string) string
}
