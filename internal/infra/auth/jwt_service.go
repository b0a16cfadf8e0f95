package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"cookbook/config"
	"cookbook/internal/domain/service"
	"cookbook/internal/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenTypeMismatch is returned when a token of one family is presented as the other.
	ErrTokenTypeMismatch = errors.New("unexpected token type")

	// ErrTokenSubject is returned when the subject claim is not a user id.
	ErrTokenSubject = errors.New("invalid token subject")
)

// jwtService is a concrete implementation of the TokenService interface using the JWT standard.
type jwtService struct {
	accessSecret  []byte        // Secret key for signing access tokens.
	refreshSecret []byte        // Secret key for signing refresh tokens.
	accessTTL     time.Duration // Time-to-live for access tokens.
	refreshTTL    time.Duration // Time-to-live for refresh tokens.
	now           func() time.Time
}

// NewJWTService is the constructor for jwtService.
// It takes configuration values to create a new token service instance.
func NewJWTService(cfg *config.Config) (service.TokenService, error) {
	accessTTL := 15 * time.Minute
	refreshTTL := 7 * 24 * time.Hour
	if cfg.Auth != nil {
		if cfg.Auth.AccessTokenTTL != 0 {
			accessTTL = cfg.Auth.AccessTokenTTL
		}
		if cfg.Auth.RefreshTokenTTL != 0 {
			refreshTTL = cfg.Auth.RefreshTokenTTL
		}
	}

	return NewJWTServiceWithTTL(cfg.SecretKey.Access, cfg.SecretKey.Refresh, accessTTL, refreshTTL)
}

// NewJWTServiceWithTTL builds a token service from explicit secrets and lifetimes.
func NewJWTServiceWithTTL(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (service.TokenService, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("jwt secrets must be provided")
	}

	return &jwtService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// GenerateTokens creates a new access token and refresh token for a given user.
func (s *jwtService) GenerateTokens(userID uuid.UUID, email string) (accessToken string, refreshToken string, err error) {
	accessToken, err = s.generateToken(userID, email, s.accessTTL, s.accessSecret, service.TokenTypeAccess)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to sign access token")
	}

	refreshToken, err = s.generateToken(userID, email, s.refreshTTL, s.refreshSecret, service.TokenTypeRefresh)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to sign refresh token")
	}

	return accessToken, refreshToken, nil
}

// ValidateToken parses the token with the secret of the requested family and
// checks signature, expiry and the typ claim.
func (s *jwtService) ValidateToken(tokenString string, tokenType string) (*service.Claims, error) {
	secret, err := s.secretFor(tokenType)
	if err != nil {
		return nil, err
	}

	claims := &service.Claims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse token")
	}

	if claims.Type != tokenType {
		return nil, errors.Wrapf(ErrTokenTypeMismatch, "got %q, want %q", claims.Type, tokenType)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.Wrap(ErrTokenSubject, err.Error())
	}
	claims.UserID = userID

	return claims, nil
}

// HashToken returns the hex SHA-256 of the token. The 64-byte result stays
// under bcrypt's 72-byte input limit, which a raw JWT would exceed.
func (s *jwtService) HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}

func (s *jwtService) secretFor(tokenType string) ([]byte, error) {
	switch tokenType {
	case service.TokenTypeAccess:
		return s.accessSecret, nil
	case service.TokenTypeRefresh:
		return s.refreshSecret, nil
	default:
		return nil, errors.Wrapf(ErrTokenTypeMismatch, "unknown token type %q", tokenType)
	}
}

// generateToken is a private helper to create a JWT with specific claims.
func (s *jwtService) generateToken(userID uuid.UUID, email string, ttl time.Duration, secret []byte, tokenType string) (string, error) {
	now := s.now()
	claims := service.Claims{
		Email: email,
		Type:  tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			// Distinguishes tokens minted for the same user within one second.
			ID: uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(secret)
}
