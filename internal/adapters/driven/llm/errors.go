// Package llm holds helpers shared by the completion adapters: failure
// classification and token accounting.
package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/custodia-labs/pda/internal/core/domain"
)

// quotaMarkers appear in provider error bodies when billing, not request
// rate, is the problem. A retry will not help these.
var quotaMarkers = []string{
	"insufficient_quota",
	"quota exceeded",
	"exceeded your current quota",
	"credit balance is too low",
	"billing",
}

// Classify wraps a provider failure in a *domain.CompletionError.
// status is the HTTP status when known, zero otherwise; detail is the
// provider's error body or message and is searched for quota markers.
func Classify(provider string, status int, detail string, err error) error {
	if err == nil {
		return nil
	}
	var ce *domain.CompletionError
	if errors.As(err, &ce) {
		return err
	}
	return &domain.CompletionError{Kind: kindOf(status, detail, err), Provider: provider, Err: err}
}

func kindOf(status int, detail string, err error) domain.CompletionErrorKind {
	lower := strings.ToLower(detail)
	for _, m := range quotaMarkers {
		if strings.Contains(lower, m) {
			return domain.CompletionQuotaExceeded
		}
	}

	switch {
	case status == http.StatusPaymentRequired:
		return domain.CompletionQuotaExceeded
	case status == http.StatusTooManyRequests:
		return domain.CompletionRateLimited
	case status == http.StatusRequestTimeout, status >= 500:
		return domain.CompletionTransient
	case status != 0:
		return domain.CompletionOther
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.CompletionTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.CompletionTransient
	}
	return domain.CompletionOther
}

// UsageCounter accumulates token counts across calls.
type UsageCounter struct {
	mu    sync.Mutex
	usage domain.TokenUsage
}

// Add records one call's token counts. A zero total is derived.
func (u *UsageCounter) Add(prompt, completion, total int) {
	if total == 0 {
		total = prompt + completion
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.usage.PromptTokens += prompt
	u.usage.CompletionTokens += completion
	u.usage.TotalTokens += total
}

// Usage returns the totals so far.
func (u *UsageCounter) Usage() domain.TokenUsage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.usage
}
