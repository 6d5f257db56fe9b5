package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestTransportError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *TransportError
		expected string
	}{
		{
			name:     "status only",
			err:      &TransportError{StatusCode: 503, ErrorClass: ErrorClassServer, Message: "503 Service Unavailable"},
			expected: "shop server error (status 503): 503 Service Unavailable",
		},
		{
			name:     "wrapped cause",
			err:      &TransportError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: io.EOF},
			expected: "shop network error (status 0): request failed: EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	err := fmt.Errorf("batch 2: %w", &TransportError{ErrorClass: ErrorClassNetwork, Err: io.ErrUnexpectedEOF})

	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("errors.Is should find the wrapped cause")
	}

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatal("errors.As should find the TransportError")
	}
	if te.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want %q", te.ErrorClass, ErrorClassNetwork)
	}
}

func TestQueryError(t *testing.T) {
	qe := &QueryError{Errors: []GraphQLError{
		{Message: "Field 'foo' doesn't exist"},
		{Message: "Throttled", Extensions: map[string]any{"code": "THROTTLED"}},
	}}

	if got, want := qe.Error(), "shop query error: Field 'foo' doesn't exist; Throttled"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !qe.Throttled() {
		t.Error("Throttled() = false, want true")
	}

	plain := &QueryError{Errors: []GraphQLError{{Message: "invalid id"}}}
	if plain.Throttled() {
		t.Error("Throttled() = true for a non-throttle error")
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: ""},
		{name: "transport", err: &TransportError{ErrorClass: ErrorClassServer}, expected: "transport"},
		{name: "exhausted transport", err: fmt.Errorf("%w after 3 attempts: %w", ErrRetryExhausted, &TransportError{}), expected: "transport"},
		{name: "query", err: &QueryError{Errors: []GraphQLError{{Message: "x"}}}, expected: "query"},
		{name: "decode", err: &DecodeError{Err: io.ErrUnexpectedEOF}, expected: "decode"},
		{name: "deadline", err: fmt.Errorf("%w: %w", ErrContextCancelled, context.DeadlineExceeded), expected: "timeout"},
		{name: "canceled", err: context.Canceled, expected: "canceled"},
		{name: "other", err: errors.New("boom"), expected: "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.expected {
				t.Errorf("Kind() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected bool
	}{
		{ErrorClassClient, false},
		{ErrorClassServer, true},
		{ErrorClassRateLimit, true},
		{ErrorClassNetwork, true},
		{ErrorClassQuery, false},
		{ErrorClassDecode, false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			if got := shouldRetry(tt.class); got != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.class, got, tt.expected)
			}
		})
	}
}
