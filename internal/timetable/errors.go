package timetable

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned by the client when upstream answers 404.
	ErrNotFound = errors.New("timetable: not found")

	// ErrAbsent is returned by the gateway when upstream has no data for a
	// key. Absence is cached like a regular result.
	ErrAbsent = errors.New("timetable: absent")

	// ErrRateLimited wraps the last 429 once retries are exhausted.
	ErrRateLimited = errors.New("timetable: rate limited")
)

// StatusError is a non-2xx upstream response other than 404.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("timetable %s: http %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("timetable %s: http %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// IsRateLimited reports whether the response was a 429.
func (e *StatusError) IsRateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }
