package api

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// StatusCode returns the HTTP status carried by err, or 0 when err did not
// come from a completed response.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsAuthFailure reports whether err is a 401 or 403 response.
func IsAuthFailure(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// IsForbidden reports whether err is a 403 response.
func IsForbidden(err error) bool {
	return StatusCode(err) == http.StatusForbidden
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}
