package parser

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrNoJSON is reported when a model response contains no JSON object.
var ErrNoJSON = errors.New("No JSON found in response")

// defaultRetryAfter applies when a 429 carries no usable Retry-After.
const defaultRetryAfter = 60 * time.Second

// RateLimitError is a provider refusing a page call with HTTP 429. The fallback
// extractor keeps the provider out of rotation until RetryAfter has passed.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// NewRateLimitError wraps err for provider. retryAfterSecs <= 0 means unknown.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *RateLimitError {
	wait := time.Duration(retryAfterSecs) * time.Second
	if wait <= 0 {
		wait = defaultRetryAfter
	}
	return &RateLimitError{Provider: provider, RetryAfter: wait, Err: err}
}

// IsRateLimit reports whether err carries a RateLimitError.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// ParseRetryAfterHeader reads a Retry-After value as whole seconds. Both the
// delta-seconds and HTTP-date forms are accepted; a date in the past, an empty value
// or garbage yields 0.
func ParseRetryAfterHeader(val string) int {
	val = strings.TrimSpace(val)
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return max(secs, 0)
	}
	at, err := http.ParseTime(val)
	if err != nil {
		return 0
	}
	wait := time.Until(at)
	if wait <= 0 {
		return 0
	}
	return int((wait + time.Second - 1) / time.Second)
}
