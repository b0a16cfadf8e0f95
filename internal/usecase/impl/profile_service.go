package impl

import (
	"context"
	"log/slog"

	"cookbook/internal/domain/entity"
	domainerrors "cookbook/internal/domain/errors"
	"cookbook/internal/domain/repository"
	"cookbook/internal/domain/service"
	"cookbook/internal/errors"
	"cookbook/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

// profileService implements the ProfileUsecase interface.
type profileService struct {
	txManager repository.TransactionManager
	userRepo  repository.UserRepository
	hasher    service.PasswordHasher
	sessionHooks
}

// ProfileServiceParams holds dependencies for ProfileService, injected by Fx.
type ProfileServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	UserRepo  repository.UserRepository
	Hasher    service.PasswordHasher
	Publisher service.EventPublisher
	Metrics   service.AuthMetrics
	Logger    *slog.Logger
}

// NewProfileService is the constructor for profileService.
func NewProfileService(params ProfileServiceParams) usecase.ProfileUsecase {
	return &profileService{
		txManager: params.TxManager,
		userRepo:  params.UserRepo,
		hasher:    params.Hasher,
		sessionHooks: sessionHooks{
			publisher: params.Publisher,
			metrics:   params.Metrics,
			logger:    params.Logger,
		},
	}
}

// GetProfile returns the public view of the user.
func (srv *profileService) GetProfile(ctx context.Context, userID uuid.UUID) (profile *entity.PublicProfile, err error) {
	defer func() { srv.record(opGetProfile, err) }()

	srv.log(ctx).Debug("Getting user profile", slog.Any("userID", userID))

	user, err := srv.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(notFoundOr(err), "failed to get user profile")
	}

	return user.Public(), nil
}

// UpdateProfile applies the non-nil fields of input. A new email must not
// belong to another account.
func (srv *profileService) UpdateProfile(ctx context.Context, userID uuid.UUID, input *usecase.UpdateProfileInput) (profile *entity.PublicProfile, err error) {
	defer func() { srv.record(opUpdateProfile, err) }()

	srv.log(ctx).Info("Updating user profile", slog.Any("userID", userID))

	var updated *entity.User

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.UserRepo()

		// 1. Find the user
		user, findErr := userRepo.FindByID(ctx, userID)
		if findErr != nil {
			return notFoundOr(findErr)
		}

		// 2. Check the new email is free
		if input.Email != nil && *input.Email != user.Email {
			owner, emailErr := userRepo.FindByEmail(ctx, *input.Email)
			switch {
			case emailErr == nil && owner.ID != user.ID:
				return domainerrors.ErrUserAlreadyExists.WrapMessage("email belongs to another account")
			case emailErr != nil && !errors.Is(emailErr, repository.ErrUserNotFound):
				return errors.Wrap(emailErr, "failed to check email availability")
			}
			user.Email = *input.Email
		}

		if input.Name != nil {
			user.Name = *input.Name
		}

		// 3. Persist and reload for fresh timestamps
		if updateErr := userRepo.Update(ctx, user); updateErr != nil {
			return errors.Wrap(notFoundOr(updateErr), "failed to update user")
		}

		reloaded, reloadErr := userRepo.FindByID(ctx, userID)
		if reloadErr != nil {
			return errors.Wrap(reloadErr, "failed to reload user")
		}
		updated = reloaded

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Failed to update user profile", slog.Any("userID", userID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute update profile transaction")
	}

	return updated.Public(), nil
}

// ChangePassword replaces the password after verifying the current one, and
// ends the active session so every outstanding refresh token stops working.
func (srv *profileService) ChangePassword(ctx context.Context, userID uuid.UUID, input *usecase.ChangePasswordInput) (err error) {
	defer func() { srv.record(opChangePassword, err) }()

	srv.log(ctx).Info("Changing password", slog.Any("userID", userID))

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.UserRepo()

		user, findErr := userRepo.FindByID(ctx, userID)
		if findErr != nil {
			return notFoundOr(findErr)
		}

		if !srv.hasher.Check(input.CurrentPassword, user.PasswordHash) {
			return domainerrors.ErrInvalidCredentials.WrapMessage("current password mismatch")
		}

		if policyErr := srv.hasher.ValidatePasswordStrength(input.NewPassword); policyErr != nil {
			return errors.Wrap(policyErr, "new password rejected")
		}

		hashedPassword, hashErr := srv.hasher.Hash(input.NewPassword)
		if hashErr != nil {
			return errors.Wrap(hashErr, "failed to hash new password")
		}

		user.PasswordHash = hashedPassword
		if updateErr := userRepo.Update(ctx, user); updateErr != nil {
			return errors.Wrap(notFoundOr(updateErr), "failed to update password")
		}

		if clearErr := userRepo.UpdateRefreshTokenHash(ctx, userID, nil); clearErr != nil {
			return errors.Wrap(clearErr, "failed to end active session")
		}

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Failed to change password", slog.Any("userID", userID), slog.Any("error", err))

		return errors.Wrap(err, "failed to execute change password transaction")
	}

	srv.publish(ctx, entity.SessionEventPasswordChanged, userID)

	return nil
}

// DeleteAccount removes the user record.
func (srv *profileService) DeleteAccount(ctx context.Context, userID uuid.UUID) (err error) {
	defer func() { srv.record(opDeleteAccount, err) }()

	srv.log(ctx).Info("Deleting account", slog.Any("userID", userID))

	if err = srv.userRepo.Delete(ctx, userID); err != nil {
		return errors.Wrap(notFoundOr(err), "failed to delete account")
	}

	srv.publish(ctx, entity.SessionEventAccountDeleted, userID)

	return nil
}

// notFoundOr maps the repository's missing-user sentinel to the domain error.
func notFoundOr(err error) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		return domainerrors.ErrUserNotFound.WrapMessage("user not found")
	}

	return err
}
