package api

import (
	"errors"
	"fmt"
)

// ErrNoResult is a successful response that carries no task result. It is
// final: asking again returns the same empty answer.
var ErrNoResult = errors.New("response contains no task result")

// StatusError is a non-200 HTTP response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}

// APIError is a DataForSEO envelope or task status other than 20000
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dataforseo error %d: %s", e.Code, e.Message)
}

// Temporary reports whether the provider flagged the failure as server side.
// DataForSEO uses 40xxx for request errors and 50xxx for internal ones.
func (e *APIError) Temporary() bool {
	return e.Code >= 50000
}

// DecodeError is a response body that could not be parsed
type DecodeError struct {
	Err     error
	Snippet string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode DataForSEO response: %v (response: %s)", e.Err, e.Snippet)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
