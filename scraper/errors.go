package scraper

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/go-scrape-atcoder/parser"
)

// ErrTimeout indicates the fetch of URL timed out.
type ErrTimeout struct {
	URL string
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Sprintf("timeout fetching %s: %v", e.URL, e.Err)
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	URL string
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Sprintf("connection failure fetching %s: %v", e.URL, e.Err)
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrForbidden indicates AtCoder answered 403.
type ErrForbidden struct {
	URL string
	Err error
}

func (e ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden %s: %v", e.URL, e.Err)
}

func (e ErrForbidden) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates AtCoder answered 404, typically an unknown contest or
// a page past the end of a listing.
type ErrNotFound struct {
	URL string
	Err error
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("not found %s: %v", e.URL, e.Err)
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates AtCoder answered 429.
type ErrRateLimited struct {
	URL string
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limited %s: %v", e.URL, e.Err)
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrStatus covers every other non-success status code.
type ErrStatus struct {
	URL        string
	StatusCode int
	Err        error
}

func (e ErrStatus) Error() string {
	return fmt.Sprintf("status %d fetching %s: %v", e.StatusCode, e.URL, e.Err)
}

func (e ErrStatus) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, parser.ErrHTMLParse) {
		return "parse"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var forbidden ErrForbidden
	if errors.As(err, &forbidden) {
		return "forbidden"
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var status ErrStatus
	if errors.As(err, &status) {
		return "status"
	}
	return "other"
}
