// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"

	"cookbook/internal/domain/entity"
	"cookbook/internal/errors"

	"github.com/google/uuid"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup key.
	ErrUserNotFound = errors.New("user not found")

	// ErrRefreshTokenStale is returned by RotateRefreshTokenHash when the stored
	// hash no longer equals the expected value, i.e. another rotation or a
	// logout won the race.
	ErrRefreshTokenStale = errors.New("refresh token hash changed concurrently")
)

// UserRepository defines the standard operations for user persistence.
// The application layer will depend on this interface, not the concrete implementation.
type UserRepository interface {
	// FindByID retrieves a single user by their unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// FindByEmail retrieves a single user by their email address.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// Create persists a new user entity to the storage.
	// A taken email surfaces as domainerrors.ErrUserAlreadyExists.
	Create(ctx context.Context, user *entity.User) error

	// Update modifies the mutable profile fields (name, email, password hash).
	Update(ctx context.Context, user *entity.User) error

	// UpdateRefreshTokenHash unconditionally overwrites the refresh slot. A nil
	// hash clears it. Missing users are not an error.
	UpdateRefreshTokenHash(ctx context.Context, id uuid.UUID, hash *string) error

	// RotateRefreshTokenHash replaces the refresh slot only if it still holds
	// expected. It returns ErrRefreshTokenStale when zero rows match.
	RotateRefreshTokenHash(ctx context.Context, id uuid.UUID, expected, next string) error

	// Delete removes the user record.
	Delete(ctx context.Context, id uuid.UUID) error
}
