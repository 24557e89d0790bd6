package driving

import "github.com/custodia-labs/pda/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get resolves current settings from the config file, defaults and
	// environment overrides.
	Get() (*domain.AppSettings, error)

	// LLMFor returns completion settings for a per-request provider
	// override. Empty selects the configured provider.
	LLMFor(provider domain.AIProvider) (domain.LLMSettings, error)

	// SetLLMProvider configures the completion provider.
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// SetEmbeddingProvider configures the embedding provider.
	// AIProviderNone disables embeddings.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// Set stores a single raw config key.
	Set(key string, value any) error

	// Validate checks the resolved settings for internal consistency.
	Validate() error

	// ValidateLLMConfig checks the completion provider by pinging it.
	ValidateLLMConfig() error

	// ValidateEmbeddingConfig checks the embedding provider by pinging it.
	ValidateEmbeddingConfig() error
}
