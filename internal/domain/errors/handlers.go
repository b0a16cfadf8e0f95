package errors

import (
	"cookbook/internal/errors"
)

// AsAppError extracts the first AppError in err's chain.
func AsAppError(err error) (AppError, bool) {
	return errors.AsType[AppError](err)
}

// HasCode reports whether err's chain carries an AppError with the same
// business code as target. Unlike errors.Is it also matches copies made by
// WithDetails.
func HasCode(err error, target AppError) bool {
	appErr, ok := AsAppError(err)
	if !ok || target == nil {
		return false
	}

	return appErr.ErrorCode() == target.ErrorCode()
}

// StatusOf returns the HTTP status an error should be rendered with.
// Errors outside the AppError family map to 500.
func StatusOf(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPCode()
	}

	return ErrInternalError.HTTPCode()
}
