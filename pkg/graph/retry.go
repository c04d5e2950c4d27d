package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	graphRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graph_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	graphRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "graph_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	graphRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graph_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// BaseBackoff is the backoff before the first retry; each subsequent
	// retry doubles it.
	BaseBackoff time.Duration

	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  30 * time.Second,
	}
}

// backoffFor returns the sleep before retry number attempt (0-based):
// BaseBackoff * 2^attempt, capped at MaxBackoff.
func (c RetryConfig) backoffFor(attempt int) time.Duration {
	backoff := c.BaseBackoff
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	if backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}
	return backoff
}

// retryWithBackoff runs fn up to 1+MaxRetries times with exponential backoff.
// fn reports the class of its failure so non-retryable errors exit the loop
// immediately. The bounded loop keeps the exhausted-retries path a single
// branch instead of a recursive call chain.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, fn func() (ErrorClass, error)) error {
	var lastErr error
	var lastClass ErrorClass

	for attempt := 0; ; attempt++ {
		class, err := fn()
		if err == nil {
			if attempt > 0 {
				log.Info().
					Str("error_class", string(lastClass)).
					Int("attempt", attempt+1).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		lastClass = class

		if !shouldRetry(class) {
			return lastErr
		}

		if attempt >= cfg.MaxRetries {
			break
		}

		backoff := cfg.backoffFor(attempt)
		graphRetriesTotal.WithLabelValues(string(class)).Inc()
		graphRetryBackoffSeconds.WithLabelValues(string(class)).Observe(backoff.Seconds())

		log.Debug().
			Str("error_class", string(class)).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(backoff):
		}
	}

	graphRetryExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	log.Warn().
		Str("error_class", string(lastClass)).
		Int("max_retries", cfg.MaxRetries).
		Msg("Retry attempts exhausted")

	// Throttling exhausts into its own sentinel so callers can tell a hard
	// rate-limit failure from a flaky upstream.
	if lastClass == ErrorClassRateLimit {
		return fmt.Errorf("%w after %d retries: %w", ErrRateLimitExceeded, cfg.MaxRetries, lastErr)
	}
	return fmt.Errorf("%w after %d retries: %w", ErrRetryExhausted, cfg.MaxRetries, lastErr)
}
