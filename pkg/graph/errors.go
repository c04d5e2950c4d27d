package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted
	// on a retriable (server or network) failure.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrRateLimitExceeded is returned when retries are exhausted on a
	// throttling response.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrContextCancelled is returned when the context is cancelled during
	// a backoff sleep.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrUnauthenticated is returned when no valid credential can be
	// resolved for a principal. Never retried.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents non-retryable 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents throttling responses: HTTP 429, or a
	// 400 whose error payload carries a Graph rate-limit code.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport-level failures.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError is a typed remote API failure with the decoded error message.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("graph %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("graph %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// shouldRetry reports whether an error class is worth retrying.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassRateLimit, ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		// 4xx errors other than throttling never succeed on retry.
		return false
	}
}

// errorEnvelope is the Graph API error payload shape.
type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Graph API error codes that signal throttling on a 400 response.
// 4 = application request limit, 17 = user request limit,
// 32 = page request limit, 613 = custom rate limit.
var rateLimitCodes = map[int]bool{4: true, 17: true, 32: true, 613: true}

// classifyStatus maps an HTTP status plus decoded error body to an error
// class and a human-readable message. A missing or malformed error payload
// yields the generic "Unknown error" message.
func classifyStatus(status int, body []byte) (ErrorClass, string) {
	message := "Unknown error"
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		message = env.Error.Message
	}

	switch {
	case status == 429:
		return ErrorClassRateLimit, message
	case status == 400 && isRateLimitPayload(env, message):
		return ErrorClassRateLimit, message
	case status >= 500:
		return ErrorClassServer, message
	default:
		return ErrorClassClient, message
	}
}

func isRateLimitPayload(env errorEnvelope, message string) bool {
	if rateLimitCodes[env.Error.Code] {
		return true
	}
	return strings.Contains(strings.ToLower(message), "rate limit")
}
