// Package apperr defines the error taxonomy shared by services and
// controllers. Business-rule violations carry a user-presentable reason;
// infrastructure failures stay generic so callers never see raw store or
// cache errors.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindPreconditionFailed
	KindForbidden
	KindTransient
)

type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(reason string) *Error {
	return &Error{Kind: KindNotFound, Reason: reason}
}

func PreconditionFailed(reason string) *Error {
	return &Error{Kind: KindPreconditionFailed, Reason: reason}
}

func Forbidden(reason string) *Error {
	return &Error{Kind: KindForbidden, Reason: reason}
}

// Transient marks a retryable infrastructure failure.
func Transient(err error) *Error {
	return &Error{Kind: KindTransient, Reason: "temporary failure, please retry", Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Reason: "internal error", Err: err}
}

func kindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindInternal, false
}

func IsNotFound(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNotFound
}

func IsPreconditionFailed(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindPreconditionFailed
}

func IsForbidden(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindForbidden
}

func IsTransient(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTransient
}

// Reason returns the user-presentable message for an error, falling back to
// a generic message for untyped errors.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return "internal error"
}

// HTTPStatus maps an error to the response status controllers should use.
func HTTPStatus(err error) int {
	switch k, _ := kindOf(err); k {
	case KindNotFound:
		return http.StatusNotFound
	case KindPreconditionFailed:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
