// Package jenkins provides an HTTP client for the Jenkins remote API with
// retry and error classification, plus a Server facade exposing cached
// job/view listings and mutation operations.
package jenkins

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, jenkins.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("jenkins: bad request")
	ErrUnauthorized = errors.New("jenkins: unauthorized")
	ErrForbidden    = errors.New("jenkins: forbidden")
	ErrNotFound     = errors.New("jenkins: not found")
	ErrConflict     = errors.New("jenkins: conflict")
	ErrThrottled    = errors.New("jenkins: throttled")
	ErrServerError  = errors.New("jenkins: server error")
)

// ServerError wraps a sentinel error with the HTTP status code and response
// body for debugging.
type ServerError struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("jenkins: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes with no dedicated sentinel.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// isRetryable reports whether the given HTTP status code should be retried.
// Only read requests consult this; mutations are never retried.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
