// Package apperr defines the error taxonomy shared by handlers, external
// service clients and the workflow engine: not-found sentinels and the
// terminal/transient split that drives retry decisions.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound signals a missing resource or a resource not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrEmptyResult signals an external service returning an empty or unusable result.
	ErrEmptyResult = errors.New("empty result")
)

// terminalError marks an error that must not be retried (bad input,
// not-found, non-retryable provider response).
type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal wraps err so IsTerminal reports true for it.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// IsTerminal reports whether err (or anything it wraps) is terminal.
// Not-found and empty-result errors are always terminal.
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}
	var t *terminalError
	if errors.As(err, &t) {
		return true
	}
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrEmptyResult)
}

// FromStatus classifies an external HTTP status code: 2xx is nil, 429 and
// 5xx are transient (plain error, eligible for retry), everything else in
// the 4xx range is terminal. 404 maps to ErrNotFound.
func FromStatus(op string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return Terminal(fmt.Errorf("%s: %w", op, ErrNotFound))
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%s: status %d", op, status)
	default:
		return Terminal(fmt.Errorf("%s: status %d", op, status))
	}
}
