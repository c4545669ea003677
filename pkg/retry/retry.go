// Package retry executes operations with exponential backoff and
// jitter, stopping early for non-retryable error classes. It generalizes
// the teacher's chunk-retry-on-failure loop (ste's transfer manager)
// from a fixed network-only retry check to the full classifier.ErrorType
// taxonomy, the way retry_manager.py's RetryManager/RetryConfig
// generalize a single network-retry helper into a configurable policy.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/yallapapi/genforge/common"
	"github.com/yallapapi/genforge/pkg/classifier"
)

// Config mirrors retry_manager.py's RetryConfig dataclass.
type Config struct {
	MaxAttempts      int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	ExponentialBase  float64
	Jitter           bool
	JitterFactor     float64
	RetryableClasses map[classifier.ErrorType]bool
}

// DefaultConfig mirrors RetryConfig()'s defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		BaseDelay:       1 * time.Second,
		MaxDelay:        300 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		JitterFactor:    0.1,
		RetryableClasses: map[classifier.ErrorType]bool{
			classifier.Network:   true,
			classifier.RateLimit: true,
			classifier.Transient: true,
		},
	}
}

func (c Config) shouldRetry(t classifier.ErrorType) bool {
	if c.RetryableClasses == nil {
		return true
	}
	return c.RetryableClasses[t]
}

// Result mirrors retry_manager.py's RetryResult.
type Result[T any] struct {
	Value        T
	Attempts     int
	TotalDelay   time.Duration
	Err          error
	Classified   *classifier.ClassifiedError
}

func (c Config) calculateDelay(attempt int) time.Duration {
	delay := float64(c.BaseDelay) * math.Pow(c.ExponentialBase, float64(attempt-1))
	if c.Jitter {
		jitterRange := delay * c.JitterFactor
		delay += (rand.Float64()*2 - 1) * jitterRange
	}
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Execute runs fn, retrying with exponential backoff while the
// classified error remains in cfg.RetryableClasses, up to cfg.MaxAttempts
// total attempts. This is genforge's equivalent of azcopy's
// common.WithNetworkRetry[T], generalized to the full error taxonomy and
// given a logger seam instead of azcopy's log-level-bound
// ILoggerResetable.
func Execute[T any](ctx context.Context, logger common.ILogger, operation string, cfg Config, fn func(ctx context.Context) (T, int, error)) Result[T] {
	var lastCE *classifier.ClassifiedError
	var totalDelay time.Duration
	var zero T

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		value, statusCode, err := fn(ctx)
		if err == nil {
			if attempt > 1 && logger != nil {
				logger.Log(common.LogInfo, fmt.Sprintf("%s succeeded after %d attempts", operation, attempt))
			}
			return Result[T]{Value: value, Attempts: attempt, TotalDelay: totalDelay}
		}

		ce := classifier.Classify(err, statusCode)
		lastCE = ce

		if !cfg.shouldRetry(ce.Type) {
			if logger != nil {
				logger.Log(common.LogError, fmt.Sprintf("%s failed with non-retryable error %s: %v", operation, ce.Type, err))
			}
			return Result[T]{Value: zero, Attempts: attempt, TotalDelay: totalDelay, Err: err, Classified: ce}
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.calculateDelay(attempt)
		totalDelay += delay
		if logger != nil {
			logger.Log(common.LogWarning, fmt.Sprintf("%s attempt %d/%d failed (%s): %v. retrying in %v", operation, attempt, cfg.MaxAttempts, ce.Type, err, delay))
		}

		select {
		case <-ctx.Done():
			return Result[T]{Value: zero, Attempts: attempt, TotalDelay: totalDelay, Err: ctx.Err(), Classified: ce}
		case <-time.After(delay):
		}
	}

	if logger != nil {
		logger.Log(common.LogError, fmt.Sprintf("%s exhausted %d attempts, last error: %v", operation, cfg.MaxAttempts, lastCE))
	}
	return Result[T]{
		Value:      zero,
		Attempts:   cfg.MaxAttempts,
		TotalDelay: totalDelay,
		Err:        fmt.Errorf("%s: exhausted %d attempts: %w", operation, cfg.MaxAttempts, lastCE),
		Classified: lastCE,
	}
}
