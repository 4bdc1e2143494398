package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoRefreshToken = errors.New("apiclient: no refresh token stored")
	ErrRenewalFailed  = errors.New("apiclient: access token renewal failed")
)

// APIError is a failed response (status >= 400) surfaced unchanged to the caller.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Status)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func IsUnauthorized(err error) bool { return StatusCode(err) == http.StatusUnauthorized }
func IsForbidden(err error) bool    { return StatusCode(err) == http.StatusForbidden }
