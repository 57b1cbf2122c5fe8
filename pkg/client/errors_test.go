package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_Error(t *testing.T) {
	err := &APIError{
		StatusCode: 503,
		ErrorClass: ErrorClassServer,
		Endpoint:   "/studies",
		Message:    "503 Service Unavailable",
		Body:       []byte(`  {"error":"down"}  `),
	}

	want := `registry server error (status 503) on /studies: 503 Service Unavailable: {"error":"down"}`
	assert.Equal(t, want, err.Error())
}

func TestAPIError_LongBodyTruncated(t *testing.T) {
	err := &APIError{StatusCode: 500, ErrorClass: ErrorClassServer, Body: []byte(strings.Repeat("x", 1000))}

	assert.True(t, strings.HasSuffix(err.Error(), "..."))
	assert.Less(t, len(err.Error()), 400)
}

func TestDecodeError_Matching(t *testing.T) {
	cause := errors.New("invalid character")
	err := fmt.Errorf("page 2: %w", &DecodeError{Endpoint: "/studies", Err: cause})

	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.ErrorIs(t, err, cause)

	var decErr *DecodeError
	assert.ErrorAs(t, err, &decErr)
	assert.Contains(t, decErr.Error(), "malformed response from /studies")
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want ErrorClass
	}{
		{400, ErrorClassClient},
		{404, ErrorClassClient},
		{429, ErrorClassClient},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
		{302, ErrorClassStatus},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, classifyStatus(tt.code))
		})
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"api error", &APIError{StatusCode: 502, ErrorClass: ErrorClassServer}, ErrorClassServer},
		{"wrapped api error", fmt.Errorf("x: %w", &APIError{ErrorClass: ErrorClassClient}), ErrorClassClient},
		{"decode", &DecodeError{Err: errors.New("bad")}, ErrorClassDecode},
		{"deadline", context.DeadlineExceeded, ErrorClassTimeout},
		{"plain", errors.New("connection refused"), ErrorClassNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classOf(tt.err))
		})
	}
}

func TestShouldRetry(t *testing.T) {
	for _, class := range []ErrorClass{ErrorClassClient, ErrorClassServer, ErrorClassStatus, ErrorClassNetwork, ErrorClassTimeout} {
		assert.True(t, shouldRetry(class), "class %s", class)
	}
	assert.False(t, shouldRetry(ErrorClassDecode))
	assert.False(t, shouldRetry(""))
}
