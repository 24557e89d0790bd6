// Package ai builds completion and embedding services from settings.
package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	geminiembed "github.com/custodia-labs/pda/internal/adapters/driven/embedding/gemini"
	openaiembed "github.com/custodia-labs/pda/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/pda/internal/adapters/driven/llm/anthropic"
	geminillm "github.com/custodia-labs/pda/internal/adapters/driven/llm/gemini"
	openaillm "github.com/custodia-labs/pda/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/pda/internal/adapters/driven/llm/ratelimit"
	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 10 * time.Second

// pinger is implemented by adapters that can check connectivity cheaply.
type pinger interface {
	Ping(ctx context.Context) error
}

// CreateCompletionService creates the provider adapter for settings,
// without throttling.
func CreateCompletionService(ctx context.Context, settings *domain.LLMSettings) (driven.CompletionService, error) {
	if settings == nil || !settings.Provider.IsValid() {
		return nil, fmt.Errorf("%w: no completion provider configured", domain.ErrCompletionUnavailable)
	}
	if settings.APIKey == "" {
		return nil, fmt.Errorf("%w: %s API key is not set", domain.ErrCompletionUnavailable, settings.Provider)
	}

	switch settings.Provider {
	case domain.AIProviderAnthropic:
		return anthropicllm.NewService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})

	case domain.AIProviderOpenAI:
		return openaillm.NewService(openaillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})

	case domain.AIProviderGemini:
		return geminillm.NewService(ctx, geminillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})

	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", settings.Provider)
	}
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if embeddings are disabled.
func CreateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || settings.Provider == domain.AIProviderNone || settings.Provider == "" {
		return nil, nil
	}
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: %s embeddings need an API key",
			domain.ErrEmbeddingUnavailable, settings.Provider)
	}

	switch settings.Provider {
	case domain.AIProviderOpenAI:
		return openaiembed.NewService(openaiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderGemini:
		return geminiembed.NewService(ctx, geminiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	svc, err := CreateEmbeddingService(ctx, settings)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()
	return svc.Ping(ctx)
}

// ValidateLLMConfig validates a completion configuration by creating a service and pinging it.
// Returns nil if the provider is not configured.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	svc, err := CreateCompletionService(ctx, settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	if p, ok := svc.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// LLMSettingsFunc returns the completion settings for a provider override.
// An empty provider selects the configured one.
type LLMSettingsFunc func(provider domain.AIProvider) (domain.LLMSettings, error)

// Ensure Resolver implements the interface.
var _ driven.CompletionResolver = (*Resolver)(nil)

// Resolver creates throttled completion services on demand. Services for
// the same provider share one rate limiter, so concurrent jobs together
// stay under the configured request rate.
type Resolver struct {
	settings LLMSettingsFunc
	create   func(context.Context, *domain.LLMSettings) (driven.CompletionService, error)

	mu       sync.Mutex
	limiters map[domain.AIProvider]*ratelimit.RateLimiter
}

// NewResolver creates a resolver over settings.
func NewResolver(settings LLMSettingsFunc) *Resolver {
	return &Resolver{
		settings: settings,
		create:   CreateCompletionService,
		limiters: make(map[domain.AIProvider]*ratelimit.RateLimiter),
	}
}

// Resolve returns a completion service for provider and model, either of
// which may be empty to use the configured default. Each call returns a
// fresh service whose Close does not affect others.
func (r *Resolver) Resolve(provider, model string) (driven.CompletionService, error) {
	settings, err := r.settings(domain.AIProvider(provider))
	if err != nil {
		return nil, err
	}
	if model != "" {
		settings.Model = model
	}

	inner, err := r.create(context.Background(), &settings)
	if err != nil {
		return nil, err
	}

	return ratelimit.Wrap(inner, ratelimit.Config{
		Timeout: settings.Timeout,
		Limiter: r.limiter(settings),
	}), nil
}

func (r *Resolver) limiter(settings domain.LLMSettings) *ratelimit.RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[settings.Provider]; ok {
		return l
	}
	rps := settings.RequestsPerSecond
	if rps <= 0 {
		rps = ratelimit.DefaultRequestsPerSecond
	}
	burst := settings.Burst
	if burst <= 0 {
		burst = ratelimit.DefaultBurst
	}
	l := ratelimit.NewRateLimiter(rps, burst)
	r.limiters[settings.Provider] = l
	return l
}
