package client

import (
	"errors"
	"fmt"
)

// ErrRequestBlocked is returned when the upstream error budget is exhausted.
var ErrRequestBlocked = errors.New("request blocked: upstream error budget exhausted")

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a response body that could not be parsed.
	ErrorClassDecode ErrorClass = "decode"

	// ErrorClassBlocked represents a request refused by the error budget.
	ErrorClassBlocked ErrorClass = "blocked"
)

// UpstreamError is returned for any failure reaching or parsing the upstream API.
type UpstreamError struct {
	Collection string
	Page       int // 0 for non-paged requests
	StatusCode int // 0 when no response was received
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	target := e.Collection
	if e.Page > 0 {
		target = fmt.Sprintf("%s page %d", e.Collection, e.Page)
	}
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error (%s, status %d): %s: %v",
			e.ErrorClass, target, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s error (%s, status %d): %s",
		e.ErrorClass, target, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstreamError reports whether err is, or wraps, an *UpstreamError.
func IsUpstreamError(err error) bool {
	var upstreamErr *UpstreamError
	return errors.As(err, &upstreamErr)
}

// countsAgainstBudget reports whether a failure should be recorded against the
// shared error budget. Refused requests never reached the upstream.
func countsAgainstBudget(class ErrorClass) bool {
	switch class {
	case ErrorClassServer, ErrorClassNetwork, ErrorClassClient:
		return true
	default:
		return false
	}
}
