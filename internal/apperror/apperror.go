// Package apperror provides the error taxonomy shared by the panel API and
// its mapping onto HTTP responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Type is the category of an error, used for status mapping and metrics.
type Type string

const (
	TypeBadRequest   Type = "bad_request"
	TypeUnauthorized Type = "unauthorized"
	TypeForbidden    Type = "forbidden"
	TypeNotFound     Type = "not_found"
	TypeConflict     Type = "conflict"
	TypeRateLimited  Type = "rate_limited"
	TypeUpstream     Type = "upstream"
	TypeBadGateway   Type = "bad_gateway"
)

// Error is a structured error carrying a client-facing reason and optional
// diagnostic metadata.
type Error struct {
	Type    Type
	Message string
	Cause   error
	Meta    map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code for the error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeBadRequest:
		return http.StatusBadRequest
	case TypeUnauthorized:
		return http.StatusUnauthorized
	case TypeForbidden:
		return http.StatusForbidden
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeRateLimited:
		return http.StatusTooManyRequests
	case TypeBadGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WithMeta attaches a diagnostic field (chainable).
func (e *Error) WithMeta(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[key] = value
	return e
}

func BadRequest(message string) *Error {
	return &Error{Type: TypeBadRequest, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Type: TypeUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Type: TypeForbidden, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Type: TypeNotFound, Message: message}
}

func Conflict(message string, cause error) *Error {
	return &Error{Type: TypeConflict, Message: message, Cause: cause}
}

func RateLimited(message string) *Error {
	return &Error{Type: TypeRateLimited, Message: message}
}

// Upstream wraps a failure of the database or another backing service.
func Upstream(message string, cause error) *Error {
	return &Error{Type: TypeUpstream, Message: message, Cause: cause}
}

// BadGateway reports an unexpected answer from Discord.
func BadGateway(message string, cause error) *Error {
	return &Error{Type: TypeBadGateway, Message: message, Cause: cause}
}

// As converts any error into a structured Error. Unknown errors become
// upstream failures with a generic message.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Upstream("Failed", err)
}

// Is reports whether err is a structured error of the given type.
func Is(err error, t Type) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == t
}

// Response is the JSON body written for failed requests.
type Response struct {
	Error string         `json:"error"`
	Type  Type           `json:"type"`
	Meta  map[string]any `json:"meta,omitempty"`
}

func (e *Error) ToResponse() Response {
	return Response{Error: e.Message, Type: e.Type, Meta: e.Meta}
}
