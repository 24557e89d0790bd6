package driven

import (
	"context"

	"github.com/custodia-labs/pda/internal/core/domain"
)

// CompletionService is the language model consumed as a black box.
//
// Failures should be reported as *domain.CompletionError so callers can
// tell quota exhaustion (needs a human) from retryable failures.
type CompletionService interface {
	// Complete returns the model's text response to prompt.
	Complete(ctx context.Context, prompt string) (string, error)

	// Provider returns the provider name (anthropic, openai, gemini).
	Provider() string

	// ModelName returns the name of the model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}

// UsageReporter is implemented by completion services that track token counts.
type UsageReporter interface {
	// Usage returns the cumulative token usage since construction.
	Usage() domain.TokenUsage
}

// CompletionResolver builds completion services for per-request overrides.
// Empty provider or model select the configured defaults.
type CompletionResolver interface {
	Resolve(provider, model string) (CompletionService, error)
}
