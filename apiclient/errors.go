package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	errs "github.com/jrsteele09/openleaf-portal/internal/errors"
)

// ErrStaleAuthorization is matched by 401 and 403 responses: the portal's view of the user's
// authentication or role is out of date and must be re-evaluated.
var ErrStaleAuthorization = errs.ErrStaleAuthorization

// ErrNotFound is matched by 404 responses.
var ErrNotFound = errs.ErrNotFound

// StatusError is returned for any non-2xx backend response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string // Backend supplied message, when the body carried one
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrStaleAuthorization:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// IsConflict reports a 409, which the backend uses for duplicate assignments.
func (e *StatusError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

func newStatusError(method, url string, statusCode int, body []byte) *StatusError {
	statusErr := &StatusError{Method: method, URL: url, StatusCode: statusCode}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		statusErr.Message = payload.Message
		if statusErr.Message == "" {
			statusErr.Message = payload.Error
		}
	} else {
		statusErr.Message = strings.TrimSpace(string(body))
	}
	statusErr.Message = truncateRunes(statusErr.Message, maxMessageRunes)
	return statusErr
}

const maxMessageRunes = 200

// truncateRunes cuts s to at most n runes, never splitting a multi-byte rune.
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
