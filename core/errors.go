package core

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var (
	// ErrCancelled marks a request that was superseded or torn down. It is expected and never user-visible.
	ErrCancelled = errors.New("request cancelled")

	// ErrMalformedRow marks a row missing an expected field or holding a non-numeric amount.
	ErrMalformedRow = errors.New("malformed row")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return fmt.Sprintf("%s: %s", err.Fields[0].Field, err.Fields[0].Error)
		}
		return ""
	}
	return err.Err.Error()
}

// RequestError is a network or server failure of a paged-list request.
// StatusCode is 0 when the request never got a response.
type RequestError struct {
	Resource   string
	StatusCode int
	Body       string
	Err        error
}

func NewRequestError(resource string, code int, body string, cause error) error {
	return &RequestError{Resource: resource, StatusCode: code, Body: body, Err: cause}
}

func (err *RequestError) Error() string {
	switch {
	case err.StatusCode == 0 && err.Err != nil:
		return fmt.Sprintf("%s: request failed: %v", err.Resource, err.Err)
	case err.StatusCode == 0:
		return fmt.Sprintf("%s: request failed", err.Resource)
	default:
		return fmt.Sprintf("%s: server responded %d %s", err.Resource, err.StatusCode, http.StatusText(err.StatusCode))
	}
}

func (err *RequestError) Unwrap() error {
	return err.Err
}

// Temporary reports whether retrying the same request may succeed.
func (err *RequestError) Temporary() bool {
	return err.StatusCode == 0 || err.StatusCode >= http.StatusInternalServerError || err.StatusCode == http.StatusTooManyRequests
}

// IsCancelled reports whether err is (or wraps) ErrCancelled.
func IsCancelled(err error) bool {
	return err != nil && (errors.Cause(err) == ErrCancelled || errors.Is(err, ErrCancelled))
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
