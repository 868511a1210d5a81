package transport

import (
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	portal "github.com/mstern/devportal/internal"
)

// APIError represents a non-2xx response from the gateway.
type APIError struct {
	StatusCode int
	Message    string // extracted from the body when present
	Body       string
}

// Error returns a formatted error string including status and message.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway: HTTP %d: %s", e.StatusCode, e.Body)
}

// Unwrap maps well-known statuses onto portal sentinel errors so callers can
// branch with errors.Is.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return portal.ErrUnauthorized
	case http.StatusForbidden:
		return portal.ErrForbidden
	case http.StatusNotFound:
		return portal.ErrNotFound
	case http.StatusConflict:
		return portal.ErrConflict
	case http.StatusTooManyRequests:
		return portal.ErrRateLimited
	}
	return nil
}

// newAPIError keeps at most 4KB of body and pulls a human message out of the
// usual envelope shapes ({"message": ...} or {"error": {"message": ...}}).
func newAPIError(status int, body []byte) *APIError {
	if len(body) > 4096 {
		body = body[:4096]
	}
	msg := gjson.GetBytes(body, "message").String()
	if msg == "" {
		msg = gjson.GetBytes(body, "error.message").String()
	}
	return &APIError{StatusCode: status, Message: msg, Body: string(body)}
}
