package llm

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy bounds retries of the extraction call. Only rate-limit errors
// are retried; any other error is returned to the caller immediately.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// DefaultRetryPolicy retries twice after the initial attempt with linearly
// increasing waits: 3s, then 5s (a third retry would wait 7s).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff: func(attempt int) time.Duration {
			return 3*time.Second + time.Duration(attempt-1)*2*time.Second
		},
	}
}

// Retrier wraps an AddressExtractor with the bounded retry policy and
// flattens the candidate list to the single-line address the pipeline needs.
type Retrier struct {
	Extractor AddressExtractor
	Policy    RetryPolicy
	Logger    *slog.Logger
}

func NewRetrier(extractor AddressExtractor, policy RetryPolicy, logger *slog.Logger) *Retrier {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	return &Retrier{Extractor: extractor, Policy: policy, Logger: logger}
}

// ExtractAddress returns the standardized first candidate, or "" when the
// text yields nothing. The error is non-nil only when the service failed:
// rate limits after MaxAttempts calls, anything else after a single call.
func (r *Retrier) ExtractAddress(ctx context.Context, text string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.Policy.MaxAttempts; attempt++ {
		candidates, err := r.Extractor.ExtractAddresses(ctx, text)
		if err == nil {
			if len(candidates) == 0 {
				return "", nil
			}
			return candidates[0].Standardize(), nil
		}
		if !IsRateLimit(err) {
			r.Logger.Error("llm.extract.failed", "attempt", attempt, "error", err)
			return "", err
		}
		lastErr = err
		if attempt == r.Policy.MaxAttempts {
			break
		}
		wait := r.Policy.Backoff(attempt)
		r.Logger.Warn("llm.extract.rate_limited",
			"attempt", attempt,
			"max_attempts", r.Policy.MaxAttempts,
			"backoff_ms", wait.Milliseconds(),
		)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	r.Logger.Error("llm.extract.rate_limit_exhausted", "attempts", r.Policy.MaxAttempts, "error", lastErr)
	return "", lastErr
}
