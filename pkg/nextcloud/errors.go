package nextcloud

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when the remote node does not exist.
	ErrNotFound = errors.New("nextcloud: not found")
	// ErrForbidden is returned when the account lacks permission for the request.
	ErrForbidden = errors.New("nextcloud: forbidden")
	// ErrExists is returned when a conditional create hits an existing node.
	ErrExists = errors.New("nextcloud: already exists")
)

// Error is a non-2xx WebDAV response.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("nextcloud: %s %q: %d %s: %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	return fmt.Sprintf("nextcloud: %s %q: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap maps well-known status codes onto the package sentinels.
func (e *Error) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrForbidden
	case http.StatusPreconditionFailed:
		return ErrExists
	}
	return nil
}
