package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/swaplane/offersvc/internal/core/domain"
)

// RetryConfig defines retry behavior for remote calls.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig provides sensible defaults: three attempts with
// roughly 1s then 2s of backoff between them.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts: 3,
	BaseDelay:   1 * time.Second,
	MaxDelay:    10 * time.Second,
}

// Classifier decides whether an error is transient and worth another
// attempt. Business errors must classify as false.
type Classifier func(error) bool

// IsTransient is the default classifier. Typed TransientError wins;
// otherwise fall back to matching well-known network failure patterns.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *domain.TransientError
	if errors.As(err, &te) {
		return true
	}

	s := strings.ToLower(err.Error())
	patterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"timeout",
		"deadline exceeded",
		"temporarily unavailable",
		"unexpected eof",
		"502", "503", "504",
	}
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Retry executes op up to cfg.MaxAttempts times, sleeping
// min(base * 2^(attempt-1), cap) between attempts. Only errors the
// classifier marks transient are retried. ErrCircuitOpen short-circuits
// on first occurrence: retrying into an open breaker adds latency with
// no chance of success.
//
// Backoff waits deliberately ignore ctx cancellation. An expired caller
// deadline does not abort an in-flight sequence; it runs to success or
// exhaustion and the caller simply never observes the result. ctx is
// still handed to op for per-call use.
func Retry(ctx context.Context, cfg RetryConfig, classify Classifier, op func(context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetryConfig.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultRetryConfig.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultRetryConfig.MaxDelay
	}
	if classify == nil {
		classify = IsTransient
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrCircuitOpen) {
			return err
		}
		if !classify(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		time.Sleep(backoffDelay(attempt, cfg))
	}

	return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

func backoffDelay(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
