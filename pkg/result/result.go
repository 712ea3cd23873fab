// Package result carries expected, business-level failures as values.
//
// Unexpected failures are returned as errors; a Result is for outcomes a caller
// is expected to branch on, such as a validation failure with a list of reasons.
package result

import (
	"strings"

	"github.com/canonica-labs/zircon/internal/errors"
)

// Result is either a success holding a value, or a failure holding a
// (possibly empty) list of error messages.
type Result[T any] struct {
	value T
	errs  []string
	ok    bool
}

// Success returns a successful result holding v.
func Success[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Failure returns a failed result. The error list may be empty.
func Failure[T any](errs ...string) Result[T] {
	list := make([]string, len(errs))
	copy(list, errs)
	return Result[T]{errs: list}
}

// IsSuccess reports whether the result is a success.
func (r Result[T]) IsSuccess() bool { return r.ok }

// IsFailure reports whether the result is a failure.
func (r Result[T]) IsFailure() bool { return !r.ok }

// Value returns the value and whether the result is a success.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.ok
}

// Errors returns a copy of the error list. A success always returns nil.
func (r Result[T]) Errors() []string {
	if r.ok || len(r.errs) == 0 {
		return nil
	}
	out := make([]string, len(r.errs))
	copy(out, r.errs)
	return out
}

// FormattedErrors joins the error list with "; ". When the list is empty the
// caller-supplied fallback is returned instead.
func (r Result[T]) FormattedErrors(fallback string) string {
	if len(r.errs) == 0 {
		return fallback
	}
	return strings.Join(r.errs, "; ")
}

// Err returns the failure as an error, or nil on success.
func (r Result[T]) Err() error {
	if r.ok {
		return nil
	}
	return errors.NewValidationFailed(r.Errors())
}

// Map transforms the value of a successful result. Failures pass through
// with their errors.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if !r.ok {
		return Failure[U](r.errs...)
	}
	return Success(fn(r.value))
}

// Bind chains a result-producing function onto a successful result.
func Bind[T, U any](r Result[T], fn func(T) Result[U]) Result[U] {
	if !r.ok {
		return Failure[U](r.errs...)
	}
	return fn(r.value)
}
