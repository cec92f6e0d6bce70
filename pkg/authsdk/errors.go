package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authsdk: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("authsdk: %d %s", e.StatusCode, e.Message)
}

func (e *APIError) IsUnauthorized() bool { return e.StatusCode == http.StatusUnauthorized }
func (e *APIError) IsForbidden() bool    { return e.StatusCode == http.StatusForbidden }
func (e *APIError) IsBadRequest() bool   { return e.StatusCode == http.StatusBadRequest }
func (e *APIError) IsRateLimited() bool  { return e.StatusCode == http.StatusTooManyRequests }

// parseErrorResponse turns an error body into an *APIError. Bodies that are
// not the JSON envelope keep their raw text as the message.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var envelope ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: envelope.Message}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}
