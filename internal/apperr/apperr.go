// Package apperr defines the failure kinds every operation reports to its caller.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindInvalidReference
	KindNotFound
	KindInsufficientStock
	KindPriceMismatch
	KindCreditLimitExceeded
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindInvalidReference:
		return "InvalidReference"
	case KindNotFound:
		return "NotFound"
	case KindInsufficientStock:
		return "InsufficientStock"
	case KindPriceMismatch:
		return "PriceMismatch"
	case KindCreditLimitExceeded:
		return "CreditLimitExceeded"
	case KindValidation:
		return "ValidationError"
	default:
		return "Internal"
	}
}

// Error carries a kind and a message meant for the caller.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind-only sentinels below, so errors.Is(err, ErrForbidden) works
// for any forbidden error whatever its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
	ErrForbidden           = &Error{Kind: KindForbidden}
	ErrInvalidReference    = &Error{Kind: KindInvalidReference}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrInsufficientStock   = &Error{Kind: KindInsufficientStock}
	ErrPriceMismatch       = &Error{Kind: KindPriceMismatch}
	ErrCreditLimitExceeded = &Error{Kind: KindCreditLimitExceeded}
	ErrValidation          = &Error{Kind: KindValidation}
)

func New(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap keeps cause reachable through errors.Is/As.
func Wrap(k Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...), Err: cause}
}

func Unauthorized(format string, args ...any) *Error { return New(KindUnauthorized, format, args...) }
func Forbidden(format string, args ...any) *Error    { return New(KindForbidden, format, args...) }
func Invalid(format string, args ...any) *Error      { return New(KindValidation, format, args...) }
func NotFound(format string, args ...any) *Error     { return New(KindNotFound, format, args...) }
func InvalidReference(format string, args ...any) *Error {
	return New(KindInvalidReference, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
