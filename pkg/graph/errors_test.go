package graph

import (
	"errors"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  bool
	}{
		{ErrorClassClient, false},
		{ErrorClassServer, true},
		{ErrorClassRateLimit, true},
		{ErrorClassNetwork, true},
		{"", false},
	}

	for _, tt := range tests {
		if got := shouldRetry(tt.class); got != tt.want {
			t.Errorf("shouldRetry(%q) = %v, want %v", tt.class, got, tt.want)
		}
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		class   ErrorClass
		message string
	}{
		{
			name:    "throttled 429",
			status:  429,
			body:    `{"error":{"message":"Application request limit reached","code":4}}`,
			class:   ErrorClassRateLimit,
			message: "Application request limit reached",
		},
		{
			name:    "400 with rate limit code",
			status:  400,
			body:    `{"error":{"message":"User request limit reached","code":17}}`,
			class:   ErrorClassRateLimit,
			message: "User request limit reached",
		},
		{
			name:    "400 with rate limit message only",
			status:  400,
			body:    `{"error":{"message":"Custom rate limit applied"}}`,
			class:   ErrorClassRateLimit,
			message: "Custom rate limit applied",
		},
		{
			name:    "plain 400",
			status:  400,
			body:    `{"error":{"message":"Unsupported get request","code":100}}`,
			class:   ErrorClassClient,
			message: "Unsupported get request",
		},
		{
			name:    "server error",
			status:  503,
			body:    `{"error":{"message":"Service temporarily unavailable"}}`,
			class:   ErrorClassServer,
			message: "Service temporarily unavailable",
		},
		{
			name:    "missing payload",
			status:  404,
			body:    "",
			class:   ErrorClassClient,
			message: "Unknown error",
		},
		{
			name:    "malformed payload",
			status:  403,
			body:    "<html>forbidden</html>",
			class:   ErrorClassClient,
			message: "Unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, message := classifyStatus(tt.status, []byte(tt.body))
			if class != tt.class {
				t.Errorf("class = %q, want %q", class, tt.class)
			}
			if message != tt.message {
				t.Errorf("message = %q, want %q", message, tt.message)
			}
		})
	}
}

func TestAPIErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := &APIError{StatusCode: 500, Class: ErrorClassServer, Message: "boom", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to find wrapped error")
	}

	var apiErr *APIError
	if !errors.As(error(err), &apiErr) {
		t.Error("expected errors.As to match *APIError")
	}
}
