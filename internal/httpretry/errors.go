package httpretry

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"syscall"
)

// ErrRetryable marks a failure that is worth another attempt.
var ErrRetryable = errors.New("retryable condition")

// StatusError is returned when every attempt ended with a retryable HTTP status.
type StatusError struct {
	StatusCode int
	URI        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d %s", e.URI, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is makes a StatusError match ErrRetryable.
func (e *StatusError) Is(target error) bool {
	return target == ErrRetryable
}

// IsRetryableStatus reports whether an HTTP status is converted into a
// retryable condition.
func IsRetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err, or any error it wraps or joins, is a
// transient failure: the ErrRetryable signal, a reset or refused connection,
// or a response that ended prematurely.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRetryable) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}
