package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// RemoteError is a failed call against the remote store.
// StatusCode is zero for transport failures (timeout, connection refused).
type RemoteError struct {
	Op         string
	Table      string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s %s: transport error: %v", e.Op, e.Table, e.Err)
		}
		return fmt.Sprintf("%s %s: transport error: %s", e.Op, e.Table, e.Message)
	}
	if e.Message == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Op, e.Table, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Op, e.Table, e.StatusCode, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient: a transport error or a 5xx.
func (e *RemoteError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError
}

// IsRetryable reports whether err is a transient remote failure.
// Errors that are not a RemoteError are treated as terminal.
func IsRetryable(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return false
}

// IsClientError reports whether err is a 4xx rejection from the remote store.
func IsClientError(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.StatusCode >= http.StatusBadRequest && re.StatusCode < http.StatusInternalServerError
	}
	return false
}

// StatusCodeOf returns the HTTP status of a remote failure, or 0.
func StatusCodeOf(err error) int {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}
