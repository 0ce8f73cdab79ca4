package llm

import (
	"errors"
	"fmt"
)

// Error types for classifying LLM errors.

// TransientError represents a temporary error that may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// NewTransientError wraps an error as transient (retryable).
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError represents a permanent error that should not be retried.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// NewFatalError wraps an error as fatal (non-retryable).
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// RateLimitError represents an HTTP 429 from a provider. It is transient,
// but retries must respect the provider's minimum delay.
type RateLimitError struct {
	err error
}

func (e *RateLimitError) Error() string {
	return e.err.Error()
}

func (e *RateLimitError) Unwrap() error {
	return e.err
}

// NewRateLimitError wraps an error as a provider rate limit.
func NewRateLimitError(err error) error {
	return &RateLimitError{err: err}
}

// ErrRateLimitExhausted is returned when every retry of a call ended in a
// rate limit. Callers treat this as a hard failure for the operation.
var ErrRateLimitExhausted = errors.New("rate limit exhausted after retries")

// ParseError reports a malformed LLM response. Raw retains the model output
// for logging; it is never fed back into the pipeline.
type ParseError struct {
	Raw string
	err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse LLM response: %v", e.err)
}

func (e *ParseError) Unwrap() error {
	return e.err
}

// NewParseError wraps an error as a response parse failure.
func NewParseError(raw string, err error) error {
	return &ParseError{Raw: raw, err: err}
}

// IsTransient returns true if the error is transient and should be retried.
// Rate limits count as transient.
func IsTransient(err error) bool {
	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}
	return IsRateLimit(err)
}

// IsFatal returns true if the error is fatal and should not be retried.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// IsRateLimit returns true if the error is a provider rate limit.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsParse returns true if the error is a response parse failure.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
