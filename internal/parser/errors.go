package parser

import (
	"fmt"
	"strconv"
	"time"

	"labdigitizer/internal/domain"
)

// ReasonNoValidPayload is the ParseError reason when no candidate parses.
const ReasonNoValidPayload = "no_valid_payload"

// ParseError indicates an oracle response held no usable structured payload.
// It is fatal for one image, never for a whole request.
type ParseError struct {
	Reason  string
	Preview string
}

func (e *ParseError) Error() string {
	if e.Preview == "" {
		return fmt.Sprintf("parse error (%s)", e.Reason)
	}
	return fmt.Sprintf("parse error (%s): %q", e.Reason, e.Preview)
}

// Unwrap lets errors.Is(err, domain.ErrNoValidPayload) match.
func (e *ParseError) Unwrap() error {
	return domain.ErrNoValidPayload
}

// NewParseError creates a ParseError with a short preview of the offending text.
func NewParseError(reason, preview string) *ParseError {
	return &ParseError{Reason: reason, Preview: preview}
}

// RateLimitError indicates an oracle provider returned HTTP 429.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
	Provider   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError creates a RateLimitError. If retryAfterSecs is 0, defaults to 60s.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *RateLimitError {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 60
	}
	return &RateLimitError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
		Provider:   provider,
	}
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return secs
}
