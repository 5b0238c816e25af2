package awx

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrConfig     = errors.New("awx: configuration error")
	ErrValidation = errors.New("awx: invalid request")
	ErrLaunch     = errors.New("awx: launch failed")
	ErrProtocol   = errors.New("awx: protocol error")
)

const maxErrorBody = 512

// HTTPError is a non-2xx controller response.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	if body == "" {
		return fmt.Sprintf("awx: %s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("awx: %s %s: %d %s: %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode), body)
}

// Temporary reports whether the controller may succeed on a later attempt.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
