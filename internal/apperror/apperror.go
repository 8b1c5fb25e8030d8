// Package apperror defines the error kinds shared by the engine and its
// callers. Transport layers branch on Kind, never on message text.
package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindInactive            Kind = "inactive_resource"
	KindInsufficientFunds   Kind = "insufficient_funds"
	KindCreditLimitExceeded Kind = "credit_limit_exceeded"
	KindAlreadyProcessed    Kind = "already_processed"
	KindStorage             Kind = "storage_fault"
	KindInvalidInput        Kind = "invalid_input"
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindConflict            Kind = "conflict"
)

// Error carries a Kind plus the operation that produced it.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap attaches a kind to an existing error.
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf reports the kind of err. Context expiry is a storage fault; any
// other unclassified error is treated the same way.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStorage
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether the caller may retry the same request.
func IsRetryable(err error) bool {
	return Is(err, KindStorage) || errors.Is(err, context.DeadlineExceeded)
}

// IsBusinessRejection reports whether err is a rule decision rather than a fault.
func IsBusinessRejection(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindInactive, KindInsufficientFunds, KindCreditLimitExceeded, KindAlreadyProcessed:
		return true
	default:
		return false
	}
}

// PublicMessage is the text safe to show an untrusted caller.
func PublicMessage(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) || appErr.Kind == KindStorage {
		return "temporary storage failure, please retry"
	}
	if appErr.Message != "" {
		return appErr.Message
	}
	return string(appErr.Kind)
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInactive:
		return http.StatusForbidden
	case KindInsufficientFunds, KindCreditLimitExceeded:
		return http.StatusPaymentRequired
	case KindAlreadyProcessed, KindConflict:
		return http.StatusConflict
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusServiceUnavailable
	}
}
