package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	deliverycontext "cookbook/internal/delivery/context"
	"cookbook/internal/delivery/http/middleware"
	"cookbook/internal/delivery/http/response"
	"cookbook/internal/delivery/http/validator"
	"cookbook/internal/domain/entity"
	domainerrors "cookbook/internal/domain/errors"
	"cookbook/internal/errors"
	mockUsecase "cookbook/internal/mocks/usecase"
	"cookbook/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	response.Response
	Data json.RawMessage `json:"data,omitempty"`
}

func newTestEcho() *echo.Echo {
	logger := slog.New(slog.DiscardHandler)

	e := echo.New()
	e.Validator = validator.New()
	e.HTTPErrorHandler = middleware.NewErrorMiddleware(logger).HandleHTTPError

	return e
}

// asUser stands in for the bearer middleware.
func asUser(userID uuid.UUID) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			deliverycontext.SetUserID(c, userID)

			return next(c)
		}
	}
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}

	return rec, env
}

func TestAuthHandler_Register(t *testing.T) {
	uc := mockUsecase.NewMockAuthUsecase(t)
	h := NewAuthHandler(uc, slog.New(slog.DiscardHandler))
	e := newTestEcho()
	e.POST("/auth/register", h.Register)

	userID := uuid.New()
	uc.EXPECT().
		Register(mock.Anything, &usecase.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd!"}).
		Return(&usecase.AuthOutput{
			AccessToken:  "access",
			RefreshToken: "refresh",
			User:         &entity.PublicProfile{ID: userID, Name: "Alice", Email: "alice@example.com", CreatedAt: time.Now()},
		}, nil)

	rec, env := doJSON(t, e, http.MethodPost, "/auth/register",
		`{"name":"Alice","email":"alice@example.com","password":"Passw0rd!"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, http.StatusCreated, env.Code)

	var out usecase.AuthOutput
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "access", out.AccessToken)
	assert.Equal(t, "refresh", out.RefreshToken)
	require.NotNil(t, out.User)
	assert.Equal(t, userID, out.User.ID)
	assert.NotContains(t, rec.Body.String(), "passwordHash")
}

func TestAuthHandler_Register_Conflict(t *testing.T) {
	uc := mockUsecase.NewMockAuthUsecase(t)
	h := NewAuthHandler(uc, slog.New(slog.DiscardHandler))
	e := newTestEcho()
	e.POST("/auth/register", h.Register)

	uc.EXPECT().Register(mock.Anything, mock.Anything).
		Return(nil, errors.Wrap(domainerrors.ErrUserAlreadyExists.WrapMessage("email taken"), "failed to execute register transaction"))

	rec, env := doJSON(t, e, http.MethodPost, "/auth/register",
		`{"name":"Alice","email":"alice@example.com","password":"Passw0rd!"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "USER_ALREADY_EXISTS", env.Error.Code)
}

func TestAuthHandler_Register_ValidationFailure(t *testing.T) {
	uc := mockUsecase.NewMockAuthUsecase(t)
	h := NewAuthHandler(uc, slog.New(slog.DiscardHandler))
	e := newTestEcho()
	e.POST("/auth/register", h.Register)

	rec, env := doJSON(t, e, http.MethodPost, "/auth/register",
		`{"name":"   ","email":"not-an-email","password":"`+strings.Repeat("é", 40)+`"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Contains(t, env.Error.Details, "name must not be blank")
	assert.Contains(t, env.Error.Details, "email must be a valid email address")
	assert.Contains(t, env.Error.Details, "password must be at most 72 bytes")
}

func TestAuthHandler_Register_MalformedBody(t *testing.T) {
	uc := mockUsecase.NewMockAuthUsecase(t)
	h := NewAuthHandler(uc, slog.New(slog.DiscardHandler))
	e := newTestEcho()
	e.POST("/auth/register", h.Register)

	rec, env := doJSON(t, e, http.MethodPost, "/auth/register", `{"name":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)
}

func TestAuthHandler_Login_InvalidCredentialsHidesDetails(t *testing.T) {
	uc := mockUsecase.NewMockAuthUsecase(t)
	h := NewAuthHandler(uc, slog.New(slog.DiscardHandler))
	e := newTestEcho()
	e.POST("/auth/login", h.Login)

	uc.EXPECT().Login(mock.Anything, &usecase.LoginInput{Email: "alice@example.com", Password: "nope"}).
		Return(nil, domainerrors.ErrInvalidCredentials.WithDetails("no such user"))

	rec, env := doJSON(t, e, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"nope"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)
	assert.Empty(t, env.Error.Details)
}

func TestAuthHandler_RefreshToken(t *testing.T) {
	uc := mockUsecase.NewMockAuthUsecase(t)
	h := NewAuthHandler(uc, slog.New(slog.DiscardHandler))
	e := newTestEcho()
	e.POST("/auth/refresh", h.RefreshToken)

	uc.EXPECT().RefreshToken(mock.Anything, &usecase.RefreshTokenInput{RefreshToken: "rt-1"}).
		Return(&usecase.AuthOutput{AccessToken: "at-2", RefreshToken: "rt-2"}, nil)

	rec, env := doJSON(t, e, http.MethodPost, "/auth/refresh", `{"refreshToken":"rt-1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	var out usecase.AuthOutput
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "rt-2", out.RefreshToken)
	assert.Nil(t, out.User)
}

func TestAuthHandler_RefreshToken_Rejected(t *testing.T) {
	uc := mockUsecase.NewMockAuthUsecase(t)
	h := NewAuthHandler(uc, slog.New(slog.DiscardHandler))
	e := newTestEcho()
	e.POST("/auth/refresh", h.RefreshToken)

	uc.EXPECT().RefreshToken(mock.Anything, mock.Anything).
		Return(nil, domainerrors.ErrRefreshTokenInvalid.WrapMessage("token reused"))

	rec, env := doJSON(t, e, http.MethodPost, "/auth/refresh", `{"refreshToken":"rt-1"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "REFRESH_TOKEN_INVALID", env.Error.Code)
}

func TestAuthHandler_Logout(t *testing.T) {
	uc := mockUsecase.NewMockAuthUsecase(t)
	h := NewAuthHandler(uc, slog.New(slog.DiscardHandler))
	userID := uuid.New()
	e := newTestEcho()
	e.POST("/auth/logout", h.Logout, asUser(userID))

	uc.EXPECT().Logout(mock.Anything, userID).Return(nil)

	rec, env := doJSON(t, e, http.MethodPost, "/auth/logout", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestAuthHandler_Logout_WithoutUser(t *testing.T) {
	uc := mockUsecase.NewMockAuthUsecase(t)
	h := NewAuthHandler(uc, slog.New(slog.DiscardHandler))
	e := newTestEcho()
	e.POST("/auth/logout", h.Logout)

	rec, env := doJSON(t, e, http.MethodPost, "/auth/logout", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "ACCESS_TOKEN_INVALID", env.Error.Code)
}

func TestUserHandler_GetProfile(t *testing.T) {
	uc := mockUsecase.NewMockProfileUsecase(t)
	h := NewUserHandler(uc, slog.New(slog.DiscardHandler))
	userID := uuid.New()
	e := newTestEcho()
	e.GET("/users/me", h.GetProfile, asUser(userID))

	uc.EXPECT().GetProfile(mock.Anything, userID).
		Return(&entity.PublicProfile{ID: userID, Name: "Alice", Email: "alice@example.com"}, nil)

	rec, env := doJSON(t, e, http.MethodGet, "/users/me", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var profile entity.PublicProfile
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "Alice", profile.Name)
}

func TestUserHandler_GetProfile_NotFound(t *testing.T) {
	uc := mockUsecase.NewMockProfileUsecase(t)
	h := NewUserHandler(uc, slog.New(slog.DiscardHandler))
	userID := uuid.New()
	e := newTestEcho()
	e.GET("/users/me", h.GetProfile, asUser(userID))

	uc.EXPECT().GetProfile(mock.Anything, userID).
		Return(nil, domainerrors.ErrUserNotFound.WrapMessage("user not found"))

	rec, env := doJSON(t, e, http.MethodGet, "/users/me", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "USER_NOT_FOUND", env.Error.Code)
}

func TestUserHandler_UpdateProfile(t *testing.T) {
	uc := mockUsecase.NewMockProfileUsecase(t)
	h := NewUserHandler(uc, slog.New(slog.DiscardHandler))
	userID := uuid.New()
	e := newTestEcho()
	e.PATCH("/users/me", h.UpdateProfile, asUser(userID))

	uc.EXPECT().
		UpdateProfile(mock.Anything, userID, mock.MatchedBy(func(in *usecase.UpdateProfileInput) bool {
			return in.Name != nil && *in.Name == "Alice L" && in.Email == nil
		})).
		Return(&entity.PublicProfile{ID: userID, Name: "Alice L"}, nil)

	rec, _ := doJSON(t, e, http.MethodPatch, "/users/me", `{"name":"Alice L"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserHandler_UpdateProfile_InvalidEmail(t *testing.T) {
	uc := mockUsecase.NewMockProfileUsecase(t)
	h := NewUserHandler(uc, slog.New(slog.DiscardHandler))
	e := newTestEcho()
	e.PATCH("/users/me", h.UpdateProfile, asUser(uuid.New()))

	rec, env := doJSON(t, e, http.MethodPatch, "/users/me", `{"email":"nope"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
}

func TestUserHandler_UpdateProfile_BlankName(t *testing.T) {
	uc := mockUsecase.NewMockProfileUsecase(t)
	h := NewUserHandler(uc, slog.New(slog.DiscardHandler))
	e := newTestEcho()
	e.PATCH("/users/me", h.UpdateProfile, asUser(uuid.New()))

	rec, env := doJSON(t, e, http.MethodPatch, "/users/me", `{"name":" \t "}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Contains(t, env.Error.Details, "name must not be blank")
}

func TestUserHandler_ChangePassword(t *testing.T) {
	uc := mockUsecase.NewMockProfileUsecase(t)
	h := NewUserHandler(uc, slog.New(slog.DiscardHandler))
	userID := uuid.New()
	e := newTestEcho()
	e.PATCH("/users/me/password", h.ChangePassword, asUser(userID))

	uc.EXPECT().
		ChangePassword(mock.Anything, userID, &usecase.ChangePasswordInput{CurrentPassword: "Passw0rd!", NewPassword: "N3wPassw0rd!"}).
		Return(nil)

	rec, env := doJSON(t, e, http.MethodPatch, "/users/me/password",
		`{"currentPassword":"Passw0rd!","newPassword":"N3wPassw0rd!"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestUserHandler_DeleteAccount(t *testing.T) {
	uc := mockUsecase.NewMockProfileUsecase(t)
	h := NewUserHandler(uc, slog.New(slog.DiscardHandler))
	userID := uuid.New()
	e := newTestEcho()
	e.DELETE("/users/me", h.DeleteAccount, asUser(userID))

	uc.EXPECT().DeleteAccount(mock.Anything, userID).Return(nil)

	rec, _ := doJSON(t, e, http.MethodDelete, "/users/me", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestUserHandler_StoreErrorIsGeneric500(t *testing.T) {
	uc := mockUsecase.NewMockProfileUsecase(t)
	h := NewUserHandler(uc, slog.New(slog.DiscardHandler))
	userID := uuid.New()
	e := newTestEcho()
	e.DELETE("/users/me", h.DeleteAccount, asUser(userID))

	uc.EXPECT().DeleteAccount(mock.Anything, userID).Return(errors.New("pq: connection refused to 10.0.0.3"))

	rec, env := doJSON(t, e, http.MethodDelete, "/users/me", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
}

func TestHealthCheck(t *testing.T) {
	e := newTestEcho()
	e.GET("/health", HealthCheck)

	rec, env := doJSON(t, e, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))
}
