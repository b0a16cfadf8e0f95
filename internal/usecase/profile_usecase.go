package usecase

import (
	"context"

	"cookbook/internal/domain/entity"

	"github.com/google/uuid"
)

// ProfileUsecase defines the interface for profile-related business operations.
type ProfileUsecase interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*entity.PublicProfile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, input *UpdateProfileInput) (*entity.PublicProfile, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, input *ChangePasswordInput) error
	DeleteAccount(ctx context.Context, userID uuid.UUID) error
}

// --- Input DTOs ---

// UpdateProfileInput holds the optional fields of a profile update.
type UpdateProfileInput struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,notblank,max=100"`
	Email *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
}

// ChangePasswordInput defines the data required to change a password.
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,maxbytes=72"`
}
