package figma

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryPolicy retries transport failures, 429 and 5xx responses with
// exponential backoff and jitter.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// NewRetryPolicy returns the default policy: 5 attempts, 0.5s doubling up to 8s.
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
	}
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// permanent marks an error as not worth retrying
func permanent(err error) error {
	return &permanentError{err: err}
}

// Retryable reports whether err should be retried
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var p *permanentError
	if errors.As(err, &p) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests ||
			apiErr.StatusCode == http.StatusRequestTimeout ||
			apiErr.StatusCode >= 500
	}
	// transport errors
	return true
}

// Backoff returns the wait before attempt+1 (attempt is zero based), with ±25% jitter.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}
	backoff += backoff * 0.25 * (rand.Float64()*2 - 1)
	if backoff < 0 {
		backoff = float64(p.InitialBackoff)
	}
	return time.Duration(backoff)
}

// Do runs fn until it succeeds, returns a non-retryable error, or attempts run out.
// A Retry-After hint on a 429 response overrides the computed backoff.
func (p *RetryPolicy) Do(ctx context.Context, logger arbor.ILogger, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) {
			var perm *permanentError
			if errors.As(lastErr, &perm) {
				return perm.err
			}
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}

		wait := p.Backoff(attempt)
		var apiErr *APIError
		if errors.As(lastErr, &apiErr) && apiErr.RetryAfter > 0 {
			wait = apiErr.RetryAfter
			if wait > p.MaxBackoff*4 {
				wait = p.MaxBackoff * 4
			}
		}

		logger.Debug().
			Int("attempt", attempt+1).
			Err(lastErr).
			Dur("backoff", wait).
			Msg("Retrying after backoff")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	logger.Warn().
		Int("max_attempts", attempts).
		Err(lastErr).
		Msg("All retry attempts exhausted")
	return lastErr
}
