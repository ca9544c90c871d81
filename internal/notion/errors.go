package notion

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrDatabaseNotFound means the database or page no longer exists (or the
// integration lost access). Callers should re-link instead of retrying.
var ErrDatabaseNotFound = errors.New("notion: object not found")

// ErrorCategory determines how a failed call is retried.
type ErrorCategory int

const (
	// Recoverable errors are retried with backoff: 429, 5xx, network failures.
	Recoverable ErrorCategory = iota
	// Irrecoverable errors fail immediately: 404, 401, 403.
	Irrecoverable
)

func (c ErrorCategory) String() string {
	switch c {
	case Recoverable:
		return "Recoverable"
	case Irrecoverable:
		return "Irrecoverable"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// APIError is a non-2xx response from the Notion API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	// RetryAfter is the server's Retry-After hint; zero when absent.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion: HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("notion: HTTP %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrDatabaseNotFound) match not-found responses.
func (e *APIError) Is(target error) bool {
	return target == ErrDatabaseNotFound && e.NotFound()
}

// NotFound reports a 404 or a message that says the object is missing.
func (e *APIError) NotFound() bool {
	if e.StatusCode == http.StatusNotFound || e.Code == "object_not_found" {
		return true
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "not found") || strings.Contains(msg, "could not find")
}

// RateLimited reports an HTTP 429.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Category classifies e for retry policy.
func (e *APIError) Category() ErrorCategory {
	switch {
	case e.NotFound(),
		e.StatusCode == http.StatusUnauthorized,
		e.StatusCode == http.StatusForbidden:
		return Irrecoverable
	default:
		return Recoverable
	}
}

// errorBody is the JSON error envelope returned by Notion.
type errorBody struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	var secs float64
	if _, err := fmt.Sscanf(v, "%g", &secs); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
