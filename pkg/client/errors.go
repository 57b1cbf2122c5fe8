package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrContextCancelled is returned when the context ends while waiting
	// between attempts.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrMalformedResponse marks a response body that could not be decoded
	// into studies. Such responses are never retried.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrResponseTooLarge is returned when a body exceeds the read limit.
	ErrResponseTooLarge = errors.New("response too large")
)

// ErrorClass classifies a failed request for retry decisions and metrics.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassStatus represents any other non-2xx response.
	ErrorClassStatus ErrorClass = "status"

	// ErrorClassNetwork represents connection and read failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents requests that hit the HTTP timeout.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassDecode represents bodies that are not valid study pages.
	ErrorClassDecode ErrorClass = "decode"
)

// APIError is a non-2xx response from the registry.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Endpoint   string
	Message    string
	Body       []byte
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("registry %s error (status %d) on %s: %s",
		e.ErrorClass, e.StatusCode, e.Endpoint, e.Message)
	if body := snippet(e.Body, 300); body != "" {
		msg += ": " + body
	}
	return msg
}

// DecodeError is a response body that could not be turned into studies.
type DecodeError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.Endpoint, e.Err)
}

// Unwrap exposes the underlying decode or flatten failure.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is makes every DecodeError match ErrMalformedResponse.
func (e *DecodeError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// classOf classifies an error returned by a single attempt.
func classOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}

	var decErr *DecodeError
	if errors.As(err, &decErr) {
		return ErrorClassDecode
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorClassTimeout
	}

	return ErrorClassNetwork
}

// classifyStatus classifies a non-2xx status code.
func classifyStatus(code int) ErrorClass {
	switch {
	case code >= 400 && code < 500:
		return ErrorClassClient
	case code >= 500:
		return ErrorClassServer
	default:
		return ErrorClassStatus
	}
}

// shouldRetry reports whether a failure of this class is worth another
// attempt. Every transport failure is retried, including 4xx; only bodies
// that fail to decode are not.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassClient, ErrorClassServer, ErrorClassStatus,
		ErrorClassNetwork, ErrorClassTimeout:
		return true
	default:
		return false
	}
}

func snippet(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
