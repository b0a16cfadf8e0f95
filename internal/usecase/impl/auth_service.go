// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"
	"time"

	deliverycontext "cookbook/internal/delivery/context"
	"cookbook/internal/domain/entity"
	domainerrors "cookbook/internal/domain/errors"
	"cookbook/internal/domain/repository"
	"cookbook/internal/domain/service"
	"cookbook/internal/errors"
	"cookbook/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

// Operation labels used for metrics and logs.
const (
	opRegister       = "register"
	opLogin          = "login"
	opRefresh        = "refresh"
	opLogout         = "logout"
	opGetProfile     = "get_profile"
	opUpdateProfile  = "update_profile"
	opChangePassword = "change_password"
	opDeleteAccount  = "delete_account"
)

// authService implements the AuthUsecase interface.
type authService struct {
	txManager    repository.TransactionManager
	userRepo     repository.UserRepository
	hasher       service.PasswordHasher
	tokenService service.TokenService
	sessionHooks
}

// AuthServiceParams holds dependencies for AuthService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager    repository.TransactionManager
	UserRepo     repository.UserRepository
	Hasher       service.PasswordHasher
	TokenService service.TokenService
	Publisher    service.EventPublisher
	Metrics      service.AuthMetrics
	Logger       *slog.Logger
}

// NewAuthService is the constructor for authService. It receives all dependencies as interfaces.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	return &authService{
		txManager:    params.TxManager,
		userRepo:     params.UserRepo,
		hasher:       params.Hasher,
		tokenService: params.TokenService,
		sessionHooks: sessionHooks{
			publisher: params.Publisher,
			metrics:   params.Metrics,
			logger:    params.Logger,
		},
	}
}

// Register creates the account and its first session in one transaction, so
// a failure while issuing tokens leaves no user behind.
func (srv *authService) Register(ctx context.Context, input *usecase.RegisterInput) (output *usecase.AuthOutput, err error) {
	defer func() { srv.record(opRegister, err) }()

	srv.log(ctx).Info("Starting registration", slog.String("email", input.Email))

	var (
		registeredUser *entity.User
		pair           tokenPair
	)

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.UserRepo()

		_, findErr := userRepo.FindByEmail(ctx, input.Email)
		if findErr == nil {
			return domainerrors.ErrUserAlreadyExists.WrapMessage("registration rejected")
		}
		if !errors.Is(findErr, repository.ErrUserNotFound) {
			return errors.Wrap(findErr, "failed to check email availability")
		}

		hashedPassword, hashErr := srv.hasher.Hash(input.Password)
		if hashErr != nil {
			return errors.Wrap(hashErr, "failed to hash password during registration")
		}

		newUser := &entity.User{
			Name:         input.Name,
			Email:        input.Email,
			PasswordHash: hashedPassword,
		}
		if createErr := userRepo.Create(ctx, newUser); createErr != nil {
			return errors.Wrap(createErr, "failed to create user during registration")
		}

		issued, issueErr := srv.openSession(ctx, userRepo, newUser)
		if issueErr != nil {
			return issueErr
		}

		registeredUser = newUser
		pair = issued

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Registration failed", slog.String("email", input.Email), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute user registration transaction")
	}

	srv.log(ctx).Debug("Registration completed", slog.Any("userID", registeredUser.ID))
	srv.publish(ctx, entity.SessionEventRegistered, registeredUser.ID)

	return &usecase.AuthOutput{
		AccessToken:  pair.accessToken,
		RefreshToken: pair.refreshToken,
		User:         registeredUser.Public(),
	}, nil
}

// Login verifies credentials and replaces whatever session the user had.
// Unknown email and wrong password fail with the same error.
func (srv *authService) Login(ctx context.Context, input *usecase.LoginInput) (output *usecase.AuthOutput, err error) {
	defer func() { srv.record(opLogin, err) }()

	srv.log(ctx).Info("Attempting to log in", slog.String("email", input.Email))

	var (
		loggedInUser *entity.User
		pair         tokenPair
	)

	// Read from the primary so a just-registered user is visible.
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.UserRepo()

		user, findErr := userRepo.FindByEmail(ctx, input.Email)
		if findErr != nil {
			if errors.Is(findErr, repository.ErrUserNotFound) {
				return domainerrors.ErrInvalidCredentials.WrapMessage("login failed")
			}

			return errors.Wrap(findErr, "failed to find user by email")
		}

		if !srv.hasher.Check(input.Password, user.PasswordHash) {
			return domainerrors.ErrInvalidCredentials.WrapMessage("login failed")
		}

		issued, issueErr := srv.openSession(ctx, userRepo, user)
		if issueErr != nil {
			return issueErr
		}

		loggedInUser = user
		pair = issued

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Login failed", slog.String("email", input.Email), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute user login transaction")
	}

	srv.log(ctx).Debug("User logged in successfully", slog.Any("userID", loggedInUser.ID))
	srv.publish(ctx, entity.SessionEventLoggedIn, loggedInUser.ID)

	return &usecase.AuthOutput{
		AccessToken:  pair.accessToken,
		RefreshToken: pair.refreshToken,
		User:         loggedInUser.Public(),
	}, nil
}

// RefreshToken rotates the session: the presented token is accepted only if
// it is the one whose digest is currently stored, and the swap to the new
// digest is conditional on that value still being there.
func (srv *authService) RefreshToken(ctx context.Context, input *usecase.RefreshTokenInput) (output *usecase.AuthOutput, err error) {
	defer func() { srv.record(opRefresh, err) }()

	srv.log(ctx).Info("Attempting to refresh session")

	claims, err := srv.tokenService.ValidateToken(input.RefreshToken, service.TokenTypeRefresh)
	if err != nil {
		srv.log(ctx).Warn("Refresh token rejected", slog.Any("error", err))

		return nil, errors.Wrap(domainerrors.ErrRefreshTokenInvalid, err.Error())
	}

	var pair tokenPair

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.UserRepo()

		user, findErr := userRepo.FindByID(ctx, claims.UserID)
		if findErr != nil {
			if errors.Is(findErr, repository.ErrUserNotFound) {
				return domainerrors.ErrRefreshTokenInvalid.WrapMessage("token subject no longer exists")
			}

			return errors.Wrap(findErr, "failed to find user")
		}

		if !user.HasActiveSession() {
			return domainerrors.ErrRefreshTokenInvalid.WrapMessage("no active session")
		}

		current := *user.RefreshTokenHash
		if !srv.hasher.Check(srv.tokenService.HashToken(input.RefreshToken), current) {
			return domainerrors.ErrRefreshTokenInvalid.WrapMessage("refresh token superseded")
		}

		issued, nextHash, issueErr := srv.issueTokens(user)
		if issueErr != nil {
			return issueErr
		}

		if rotateErr := userRepo.RotateRefreshTokenHash(ctx, user.ID, current, nextHash); rotateErr != nil {
			if errors.Is(rotateErr, repository.ErrRefreshTokenStale) {
				return domainerrors.ErrRefreshTokenInvalid.WrapMessage("refresh token superseded concurrently")
			}

			return errors.Wrap(rotateErr, "failed to rotate refresh token")
		}

		pair = issued

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Failed to refresh session", slog.Any("userID", claims.UserID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute refresh token transaction")
	}

	srv.publish(ctx, entity.SessionEventRefreshed, claims.UserID)

	return &usecase.AuthOutput{
		AccessToken:  pair.accessToken,
		RefreshToken: pair.refreshToken,
	}, nil
}

// Logout clears the refresh slot unconditionally. Repeating it, or calling it
// for a user that no longer exists, succeeds.
func (srv *authService) Logout(ctx context.Context, userID uuid.UUID) (err error) {
	defer func() { srv.record(opLogout, err) }()

	srv.log(ctx).Info("Attempting to log out", slog.Any("userID", userID))

	// Single operation - use direct repository instance
	if err = srv.userRepo.UpdateRefreshTokenHash(ctx, userID, nil); err != nil {
		srv.log(ctx).Error("Failed to clear refresh token", slog.Any("userID", userID), slog.Any("error", err))

		return errors.Wrap(err, "failed to clear refresh token")
	}

	srv.log(ctx).Info("Successfully logged out", slog.Any("userID", userID))
	srv.publish(ctx, entity.SessionEventLoggedOut, userID)

	return nil
}

type tokenPair struct {
	accessToken  string
	refreshToken string
}

// openSession issues a pair for user and overwrites the stored refresh digest.
func (srv *authService) openSession(ctx context.Context, userRepo repository.UserRepository, user *entity.User) (tokenPair, error) {
	pair, refreshHash, err := srv.issueTokens(user)
	if err != nil {
		return tokenPair{}, err
	}

	if err := userRepo.UpdateRefreshTokenHash(ctx, user.ID, &refreshHash); err != nil {
		return tokenPair{}, errors.Wrap(err, "failed to store refresh token")
	}
	user.RefreshTokenHash = &refreshHash

	return pair, nil
}

// issueTokens mints a pair and returns the value to store for its refresh
// token: bcrypt over the SHA-256 digest, since a JWT exceeds bcrypt's input
// limit.
func (srv *authService) issueTokens(user *entity.User) (tokenPair, string, error) {
	accessToken, refreshToken, err := srv.tokenService.GenerateTokens(user.ID, user.Email)
	if err != nil {
		return tokenPair{}, "", errors.Wrap(domainerrors.ErrTokenIssueFailed, err.Error())
	}

	refreshHash, err := srv.hasher.Hash(srv.tokenService.HashToken(refreshToken))
	if err != nil {
		return tokenPair{}, "", errors.Wrap(err, "failed to hash refresh token")
	}

	return tokenPair{accessToken: accessToken, refreshToken: refreshToken}, refreshHash, nil
}

// sessionHooks bundles the side channels shared by the session-affecting
// services: request-scoped logging, event publishing and outcome metrics.
type sessionHooks struct {
	publisher service.EventPublisher
	metrics   service.AuthMetrics
	logger    *slog.Logger
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (h *sessionHooks) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, h.logger)
}

// publish emits a session event. Delivery is best effort: a failure is
// logged and never returned to the caller.
func (h *sessionHooks) publish(ctx context.Context, eventType entity.SessionEventType, userID uuid.UUID) {
	if h.publisher == nil {
		return
	}

	event := &entity.SessionEvent{
		RequestID:  deliverycontext.GetRequestIDFromContext(ctx),
		Type:       eventType,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
	if err := h.publisher.PublishSessionEvent(ctx, event); err != nil {
		h.log(ctx).Warn("Failed to publish session event",
			slog.String("type", string(eventType)),
			slog.Any("userID", userID),
			slog.Any("error", err),
		)
	}
}

func (h *sessionHooks) record(operation string, err error) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordAttempt(operation, outcomeOf(err))
}

// outcomeOf classifies an operation result into a metrics outcome label.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return service.OutcomeSuccess
	case domainerrors.HasCode(err, domainerrors.ErrUserAlreadyExists):
		return service.OutcomeConflict
	case domainerrors.HasCode(err, domainerrors.ErrInvalidCredentials),
		domainerrors.HasCode(err, domainerrors.ErrRefreshTokenInvalid):
		return service.OutcomeUnauthorized
	case domainerrors.HasCode(err, domainerrors.ErrUserNotFound):
		return service.OutcomeNotFound
	case domainerrors.HasCode(err, domainerrors.ErrPasswordStrength),
		domainerrors.HasCode(err, domainerrors.ErrValidationFailed):
		return service.OutcomeInvalid
	default:
		return service.OutcomeError
	}
}
