package client

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// RetryReason names the failure class that consumed a retry
type RetryReason string

const (
	ReasonConnect RetryReason = "connect"
	ReasonRead    RetryReason = "read"
	ReasonStatus  RetryReason = "status"
)

// NetworkError is returned by Transport once a retry budget is exhausted
type NetworkError struct {
	Service  string
	Attempts int
	Reason   RetryReason
	Response *RawResponse // last response for status exhaustion, nil otherwise
	Err      error
}

func (e *NetworkError) Error() string {
	if e.Response != nil {
		return fmt.Sprintf("%s: %s retries exhausted after %d attempts: HTTP %d",
			e.Service, e.Reason, e.Attempts, e.Response.StatusCode)
	}
	return fmt.Sprintf("%s: %s retries exhausted after %d attempts: %v", e.Service, e.Reason, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DecodeError means the body contains a byte the configured charset does not define
type DecodeError struct {
	Charset string
	Offset  int
	Byte    byte
	Body    []byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode byte 0x%02x at offset %d as %s", e.Byte, e.Offset, e.Charset)
}

// HTTPError is a non-2xx response with no more specific meaning
type HTTPError struct {
	StatusCode int
	Body       string
	Header     http.Header
}

func (e *HTTPError) Error() string {
	return "bad status code" + describe(e.StatusCode, e.Body, e.Header)
}

// GetHTTPError extracts HTTPError from error if possible
func GetHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	ok := errors.As(err, &httpErr)
	return httpErr, ok
}

// NoStatusFoundError is returned for HTTP 400: the request was understood
// but the server had nothing to report.
type NoStatusFoundError struct {
	Body   string
	Header http.Header
}

func (e *NoStatusFoundError) Error() string {
	return "no status found" + describe(http.StatusBadRequest, e.Body, e.Header)
}

// IsNoStatusFound reports whether err is a NoStatusFoundError
func IsNoStatusFound(err error) bool {
	var nsf *NoStatusFoundError
	return errors.As(err, &nsf)
}

// QuotaExceededError is returned when the request quota is exhausted and no
// further wait is allowed.
type QuotaExceededError struct {
	ResetAt time.Time
	Wait    time.Duration
	Body    string
	Header  http.Header
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded, resets at %s UTC", e.ResetAt.UTC().Format("2006-01-02 15:04:05"))
}

// WaitMessage describes the wait as logged before sleeping
func (e *QuotaExceededError) WaitMessage(now time.Time) string {
	retryAt := now.Add(e.Wait).UTC()
	return fmt.Sprintf("Rate limit exceeded! Waiting %.0f seconds. Will retry at %s UTC.",
		e.Wait.Seconds(), retryAt.Format("2006-01-02 15:04:05"))
}

// IsQuotaExceeded reports whether err is a QuotaExceededError
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}

func describe(code int, body string, header http.Header) string {
	if len(body) > 2048 {
		body = body[:2048] + "..."
	}
	return fmt.Sprintf("\nStatus code: %d\nResponse content: %q\nResponse headers: %v", code, body, header)
}
