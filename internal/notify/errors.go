package notify

import (
	"errors"
	"fmt"
	"time"
)

// rateLimitError represents a 429 response from a webhook provider,
// carrying the retry-after delay it asked for.
type rateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *rateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// clientError represents a non-retryable 4xx response.
type clientError struct {
	StatusCode int
	Message    string
}

func (e *clientError) Error() string { return e.Message }

// serverError represents a retryable 5xx response.
type serverError struct {
	StatusCode int
	Message    string
}

func (e *serverError) Error() string { return e.Message }

func as429(err error) (*rateLimitError, bool) {
	var rl *rateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// retryable reports whether err is worth retrying: server errors and
// plain network/context errors are, client errors and rate limits
// (handled separately via as429) are not.
func retryable(err error) bool {
	var srv *serverError
	if errors.As(err, &srv) {
		return true
	}
	var cli *clientError
	if errors.As(err, &cli) {
		return false
	}
	var rl *rateLimitError
	if errors.As(err, &rl) {
		return false
	}
	return true
}
