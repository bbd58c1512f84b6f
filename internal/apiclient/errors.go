package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthenticated is returned before any request is sent when no bearer token is stored.
var ErrUnauthenticated = errors.New("not authenticated: no token stored")

// NetworkError is a transport-level failure: DNS, refused connection, reset, timeout.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline or client timeout.
func (e *NetworkError) Timeout() bool {
	var t interface{ Timeout() bool }
	if errors.As(e.Err, &t) && t.Timeout() {
		return true
	}
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// RequestFailedError means the server answered with a non-2xx status.
type RequestFailedError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
}

// genericMessage is used when the server sent no usable message.
func genericMessage(status int) string {
	return fmt.Sprintf("request failed with status %d (%s)", status, http.StatusText(status))
}

// IsUnauthenticated reports whether err means the user has to log in again:
// no stored token, or the server rejected the one we sent.
func IsUnauthenticated(err error) bool {
	if errors.Is(err, ErrUnauthenticated) {
		return true
	}
	var rf *RequestFailedError
	return errors.As(err, &rf) && rf.StatusCode == http.StatusUnauthorized
}

// IsNetwork reports whether err is a *NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
