package rest

import "fmt"

// Error is a non-2xx response.
type Error struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Body       string `json:"body,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rest: %s (status: %d)", e.Message, e.StatusCode)
}

func (e *Error) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

func (e *Error) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}
