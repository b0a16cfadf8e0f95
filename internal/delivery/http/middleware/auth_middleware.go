package middleware

import (
	"strings"

	deliverycontext "cookbook/internal/delivery/context"
	domainerrors "cookbook/internal/domain/errors"
	"cookbook/internal/domain/service"

	"github.com/labstack/echo/v4"
)

const bearerPrefix = "Bearer "

// AuthMiddleware provides middleware for JWT authentication.
type AuthMiddleware struct {
	tokenSvc service.TokenService
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(tokenSvc service.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc}
}

// Authenticate validates the bearer access token and stores its subject on
// the context. Refresh tokens are rejected here.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			return domainerrors.ErrAccessTokenInvalid.WrapMessage("authorization header is missing")
		}

		if len(authHeader) <= len(bearerPrefix) || !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
			return domainerrors.ErrAccessTokenInvalid.WrapMessage("authorization header must be a bearer token")
		}
		tokenString := strings.TrimSpace(authHeader[len(bearerPrefix):])

		claims, err := m.tokenSvc.ValidateToken(tokenString, service.TokenTypeAccess)
		if err != nil {
			return domainerrors.ErrAccessTokenInvalid.WrapMessage(err.Error())
		}

		deliverycontext.SetUserID(c, claims.UserID)

		return next(c)
	}
}
