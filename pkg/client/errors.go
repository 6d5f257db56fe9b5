package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents HTTP 429 and THROTTLED query errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassQuery represents GraphQL-level errors in a 200 response.
	ErrorClassQuery ErrorClass = "query"

	// ErrorClassDecode represents bodies that are not the expected JSON.
	ErrorClassDecode ErrorClass = "decode"
)

// TransportError is a network or HTTP-layer failure.
type TransportError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("shop %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("shop %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// GraphQLError is one entry of a response's top-level errors array.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Code returns extensions.code, or "" when absent.
func (e GraphQLError) Code() string {
	code, _ := e.Extensions["code"].(string)
	return code
}

// QueryError is returned when the remote API answered with a GraphQL errors array.
type QueryError struct {
	Errors []GraphQLError
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ge := range e.Errors {
		msgs = append(msgs, ge.Message)
	}
	return "shop query error: " + strings.Join(msgs, "; ")
}

// Throttled reports whether any of the errors is a THROTTLED error.
func (e *QueryError) Throttled() bool {
	for _, ge := range e.Errors {
		if ge.Code() == "THROTTLED" {
			return true
		}
	}
	return false
}

// DecodeError is returned when a response body cannot be decoded.
type DecodeError struct {
	// Snippet holds the start of the offending body.
	Snippet string
	Err     error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("shop decode error: %v (body %q)", e.Err, e.Snippet)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Kind maps an error to a short label used in logs, metrics and export reports.
func Kind(err error) string {
	var (
		te *TransportError
		qe *QueryError
		de *DecodeError
	)

	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, ErrContextCancelled):
		return "canceled"
	case errors.As(err, &qe):
		return "query"
	case errors.As(err, &de):
		return "decode"
	case errors.As(err, &te):
		return "transport"
	default:
		return "internal"
	}
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	case ErrorClassClient, ErrorClassQuery, ErrorClassDecode:
		// Resending the same query yields the same answer.
		return false
	default:
		return false
	}
}
