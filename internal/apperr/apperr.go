// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package apperr classifies service errors so handlers can map them to
// HTTP responses without knowing every sentinel.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is the category of an application error.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindAuth        Kind = "auth"
	KindForbidden   Kind = "forbidden"
	KindRateLimited Kind = "rate_limited"
	KindDispatch    Kind = "dispatch"
	KindInternal    Kind = "internal"
)

var defaultStatus = map[Kind]int{
	KindValidation:  http.StatusBadRequest,
	KindNotFound:    http.StatusNotFound,
	KindAuth:        http.StatusUnauthorized,
	KindForbidden:   http.StatusForbidden,
	KindRateLimited: http.StatusTooManyRequests,
	KindDispatch:    http.StatusInternalServerError,
	KindInternal:    http.StatusInternalServerError,
}

// Error is an error with a kind, an HTTP status and a message that is safe
// to show to clients. Err holds the underlying cause, if any.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of kind with an explicit status.
func New(kind Kind, status int, message string) *Error {
	return &Error{Kind: kind, Status: status, Message: message}
}

func newKind(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Status: defaultStatus[kind], Message: message, Err: err}
}

func Validation(message string) *Error  { return newKind(KindValidation, message, nil) }
func NotFound(message string) *Error    { return newKind(KindNotFound, message, nil) }
func Auth(message string) *Error        { return newKind(KindAuth, message, nil) }
func Forbidden(message string) *Error   { return newKind(KindForbidden, message, nil) }
func RateLimited(message string) *Error { return newKind(KindRateLimited, message, nil) }

// Dispatch wraps a failure to deliver a code to the user.
func Dispatch(message string, err error) *Error { return newKind(KindDispatch, message, err) }

// Internal wraps an unexpected infrastructure failure.
func Internal(message string, err error) *Error { return newKind(KindInternal, message, err) }

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// StatusOf returns the HTTP status for err. Unclassified errors are 500.
func StatusOf(err error) int {
	if e, ok := As(err); ok && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}
