package postgres

import (
	"cookbook/internal/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE codes for integrity violations.
const (
	pgCodeNotNullViolation = "23502"
	pgCodeUniqueViolation  = "23505"
	pgCodeCheckViolation   = "23514"
)

// usersEmailConstraint is the unique index backing email uniqueness.
const usersEmailConstraint = "users_email_key"

func pgErrorCode(err error) (string, string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName, true
	}

	return "", "", false
}

// Helper functions for PostgreSQL error checking
func isUniqueConstraintViolation(err error) bool {
	if err == nil {
		return false
	}

	// GORM translates driver errors only when TranslateError is enabled.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	code, _, ok := pgErrorCode(err)

	return ok && code == pgCodeUniqueViolation
}

// isEmailConflict narrows a unique violation to the email constraint. A
// violation without a constraint name is treated as the email, the only
// unique column besides the primary key.
func isEmailConflict(err error) bool {
	if !isUniqueConstraintViolation(err) {
		return false
	}

	_, constraint, ok := pgErrorCode(err)

	return !ok || constraint == "" || constraint == usersEmailConstraint
}

func isNotNullConstraintViolation(err error) bool {
	code, _, ok := pgErrorCode(err)

	return ok && code == pgCodeNotNullViolation
}

func isCheckConstraintViolation(err error) bool {
	if errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return true
	}

	code, _, ok := pgErrorCode(err)

	return ok && code == pgCodeCheckViolation
}
