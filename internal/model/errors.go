package model

import (
	"errors"
	"fmt"
	"time"
)

// FetchError reports that one URL could not be fetched.
// It is scoped to that URL: the crawl carries on with every other URL.
type FetchError struct {
	// URL is the URL whose fetch failed.
	URL string

	// Err is the underlying transport, status or decoding error.
	Err error

	// Time is when the failure was observed.
	Time time.Time
}

// NewFetchError wraps err as a failure of url.
func NewFetchError(url string, err error) *FetchError {
	return &FetchError{
		URL:  url,
		Err:  err,
		Time: time.Now(),
	}
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code if the failure was a non-2xx
// response, or 0 otherwise.
func (e *FetchError) StatusCode() int {
	var se *StatusError
	if errors.As(e.Err, &se) {
		return se.StatusCode
	}
	return 0
}

// StatusError is returned by HTTP fetchers for non-2xx responses.
type StatusError struct {
	// StatusCode is the HTTP status code, e.g. 404.
	StatusCode int

	// Status is the status line text, e.g. "404 Not Found".
	Status string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Status != "" {
		return "unexpected HTTP status: " + e.Status
	}
	return fmt.Sprintf("unexpected HTTP status: %d", e.StatusCode)
}
