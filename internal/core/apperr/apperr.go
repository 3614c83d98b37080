// Package apperr classifies failures so the HTTP layer can map them to a
// status code and a client-safe message without inspecting raw errors.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

type Error struct {
	Code int // HTTP status
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" && e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func InvalidInput(msg string) error    { return &Error{Code: http.StatusBadRequest, Msg: msg} }
func Conflict(msg string) error        { return &Error{Code: http.StatusBadRequest, Msg: msg} }
func Unauthorized(msg string) error    { return &Error{Code: http.StatusUnauthorized, Msg: msg} }
func Unauthenticated(msg string) error { return &Error{Code: http.StatusUnauthorized, Msg: msg} }
func Forbidden(msg string) error       { return &Error{Code: http.StatusForbidden, Msg: msg} }
func NotFound(msg string) error        { return &Error{Code: http.StatusNotFound, Msg: msg} }
func TooManyRequests(msg string) error { return &Error{Code: http.StatusTooManyRequests, Msg: msg} }

func Internal(msg string, err error) error {
	return &Error{Code: http.StatusInternalServerError, Msg: msg, Err: err}
}

func Unavailable(msg string, err error) error {
	return &Error{Code: http.StatusServiceUnavailable, Msg: msg, Err: err}
}

// FromStore wraps a storage failure. Deadline overruns become Unavailable so
// callers see 503 instead of a hung request; everything else is Internal.
func FromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Unavailable("Service temporarily unavailable", err)
	}
	return Internal(op, err)
}

// CodeOf returns the HTTP status carried by err, 500 for unclassified errors.
func CodeOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return http.StatusInternalServerError
}

// PublicMessage is what the client may see. Server-side failures never leak
// their cause.
func PublicMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Code < http.StatusInternalServerError {
		return ae.Error()
	}
	if errors.As(err, &ae) && ae.Code == http.StatusServiceUnavailable {
		return ae.Msg
	}
	return GenericMessage
}

const GenericMessage = "Something went wrong!"
