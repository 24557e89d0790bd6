// Package ratelimit wraps a completion service with request throttling,
// a per-call deadline and bounded retries of retryable failures.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/pda/internal/adapters/driven/llm"
	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
	"github.com/custodia-labs/pda/internal/logger"
)

// Ensure Service implements the interfaces.
var (
	_ driven.CompletionService = (*Service)(nil)
	_ driven.UsageReporter     = (*Service)(nil)
)

// Defaults applied when Config fields are zero.
const (
	DefaultRequestsPerSecond = 2.0
	DefaultBurst             = 4
	DefaultTimeout           = 120 * time.Second
	DefaultMaxRetries        = 2
	DefaultBackoff           = 5 * time.Second
)

// Config holds throttling settings.
type Config struct {
	// RequestsPerSecond is the sustained request rate.
	RequestsPerSecond float64

	// Burst is the maximum burst size.
	Burst int

	// Timeout bounds each completion call.
	Timeout time.Duration

	// MaxRetries bounds retries of rate-limited and transient failures.
	// Negative disables retries.
	MaxRetries int

	// Backoff is the base delay between retries, multiplied by the attempt.
	Backoff time.Duration

	// Limiter shares one bucket across services; nil creates a new one
	// from RequestsPerSecond and Burst.
	Limiter *RateLimiter
}

// RateLimiter is a token bucket that also honours a backoff window after
// the provider reports rate limiting.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter creates a limiter for rps requests per second.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also respects any backoff period set by RecordRateLimitError.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	return r.limiter.Wait(ctx)
}

// RecordRateLimitError pauses all callers for d.
func (r *RateLimiter) RecordRateLimitError(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if at := time.Now().Add(d); at.After(r.retryAt) {
		r.retryAt = at
	}
}

// Service is a throttled CompletionService.
type Service struct {
	inner      driven.CompletionService
	limiter    *RateLimiter
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
}

// Wrap throttles inner according to cfg.
func Wrap(inner driven.CompletionService, cfg Config) *Service {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst)
	}

	return &Service{
		inner:      inner,
		limiter:    limiter,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
}

// Complete waits for a request slot, then calls the wrapped service under
// the per-call timeout. Rate-limited and transient failures are retried.
func (s *Service) Complete(ctx context.Context, prompt string) (string, error) {
	for attempt := 0; ; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}

		out, err := s.call(ctx, prompt)
		if err == nil {
			return out, nil
		}

		delay := s.backoff * time.Duration(attempt+1)
		if errors.Is(err, domain.ErrRateLimited) {
			s.limiter.RecordRateLimitError(delay)
		}
		if !domain.IsRetryable(err) || attempt >= s.maxRetries || ctx.Err() != nil {
			return "", err
		}
		logger.Warn("%s completion attempt %d failed, retrying in %s: %v",
			s.inner.Provider(), attempt+1, delay, err)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", err
		case <-t.C:
		}
	}
}

func (s *Service) call(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.inner.Complete(callCtx, prompt)
	if err == nil {
		return out, nil
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return "", &domain.CompletionError{
			Kind:     domain.CompletionTransient,
			Provider: s.inner.Provider(),
			Err:      fmt.Errorf("no response within %s: %w", s.timeout, err),
		}
	}
	return "", llm.Classify(s.inner.Provider(), 0, "", err)
}

// Provider returns the wrapped provider name.
func (s *Service) Provider() string {
	return s.inner.Provider()
}

// ModelName returns the wrapped model name.
func (s *Service) ModelName() string {
	return s.inner.ModelName()
}

// Usage reports the wrapped service's token usage, if it tracks any.
func (s *Service) Usage() domain.TokenUsage {
	if u, ok := s.inner.(driven.UsageReporter); ok {
		return u.Usage()
	}
	return domain.TokenUsage{}
}

// Unwrap returns the throttled service.
func (s *Service) Unwrap() driven.CompletionService {
	return s.inner
}

// Close closes the wrapped service.
func (s *Service) Close() error {
	return s.inner.Close()
}
