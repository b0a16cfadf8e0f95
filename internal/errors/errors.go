// Package errors is the single import for error handling: stdlib matching
// plus pkg/errors annotation, so every wrap records a stack.
package errors

import (
	stderrors "errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Matching.

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

// AsType returns the first error in err's chain assignable to T.
func AsType[T error](err error) (T, bool) {
	var target T
	if stderrors.As(err, &target) {
		return target, true
	}

	return target, false
}

// Construction.

// New returns a plain error without a stack. Use it for sentinels.
func New(text string) error { return stderrors.New(text) }

// Errorf formats an error and records the caller's stack.
func Errorf(format string, args ...any) error { return pkgerrors.Errorf(format, args...) }

// Annotation. All of these return nil for a nil err.

func Wrap(err error, message string) error { return pkgerrors.Wrap(err, message) }

func Wrapf(err error, format string, args ...any) error {
	return pkgerrors.Wrapf(err, format, args...)
}

func WithStack(err error) error { return pkgerrors.WithStack(err) }

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// StackTrace renders the deepest stack recorded in err's chain, or "" when
// none was recorded.
func StackTrace(err error) string {
	var deepest stackTracer
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			deepest = st
		}
	}
	if deepest == nil {
		return ""
	}

	return fmt.Sprintf("%+v", deepest.StackTrace())
}
