package api

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a failed response from an audioconv server. Code and ErrorCode
// are empty when the body was not an audioconv error document.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Message != "":
		return e.Message
	case e.Status > 0:
		return fmt.Sprintf("api error: %d %s", e.Status, http.StatusText(e.Status))
	default:
		return "api error"
	}
}

// Retryable reports whether the same request may succeed later without
// changes: the server was saturated or the engine ran out of time.
func (e *APIError) Retryable() bool {
	if e == nil {
		return false
	}
	switch {
	case e.Status == http.StatusTooManyRequests, e.Status == http.StatusServiceUnavailable:
		return true
	case e.Code == "engine_timeout":
		return true
	}
	return false
}

// FromServer reports whether the body carried an audioconv error code, as
// opposed to a proxy or some other service answering at the API URL.
func (e *APIError) FromServer() bool {
	return e != nil && e.Code != ""
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
