package delivery

import (
	"errors"
	"fmt"
	"time"
)

// TimeoutError reports that a single attempt exceeded its timeout budget.
// Retryable.
type TimeoutError struct {
	Attempt int
	Budget  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("attempt %d timed out after %s", e.Attempt, e.Budget)
}

// PermanentError reports a 4xx response. Stops the retry loop immediately.
type PermanentError struct {
	StatusCode int
	Body       string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent failure: status %d", e.StatusCode)
}

// RetryExhaustedError reports that every attempt failed with a retryable
// error. Carries the last attempt's error.
type RetryExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts failed: %v", e.Attempts, e.LastErr)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.LastErr
}

// IsTimeout reports whether err is a per-attempt timeout
func IsTimeout(err error) bool {
	var t *TimeoutError
	return errors.As(err, &t)
}

// IsPermanent reports whether err is a non-retryable HTTP failure
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// IsRetryExhausted reports whether err is a retry budget exhaustion
func IsRetryExhausted(err error) bool {
	var r *RetryExhaustedError
	return errors.As(err, &r)
}
