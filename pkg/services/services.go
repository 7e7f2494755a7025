package services

import (
	"net/http"
	"time"
)

// DefaultTimeout applies when a Config leaves Timeout unset.
const DefaultTimeout = 60 * time.Second

// Config describes one remote collaborator endpoint
type Config struct {
	URL     string
	Timeout time.Duration
}

// HTTPClient builds the client used to reach the endpoint
func (c Config) HTTPClient() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Doer is satisfied by *http.Client
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TruncateBody truncates a response body to a maximum length for error messages.
// This helps keep error logs readable while still providing context.
// Default maxLen is 500 if not specified.
func TruncateBody(body []byte, maxLen ...int) string {
	limit := 500
	if len(maxLen) > 0 && maxLen[0] > 0 {
		limit = maxLen[0]
	}
	s := string(body)
	if len(s) > limit {
		return s[:limit] + "... (truncated)"
	}
	return s
}

// Succeeded reports whether an HTTP status is 2xx.
func Succeeded(status int) bool {
	return status >= 200 && status < 300
}
