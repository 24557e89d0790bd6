package services

import (
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
	"github.com/custodia-labs/pda/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyLLMProvider       = "llm.provider"
	keyLLMModel          = "llm.model"
	keyLLMBaseURL        = "llm.base_url"
	keyLLMAPIKey         = "llm.api_key"
	keyLLMTimeout        = "llm.timeout_seconds"
	keyLLMRPS            = "llm.requests_per_second"
	keyLLMBurst          = "llm.burst"
	keyEmbedProvider     = "embedding.provider"
	keyEmbedModel        = "embedding.model"
	keyEmbedBaseURL      = "embedding.base_url"
	keyEmbedAPIKey       = "embedding.api_key"
	keyStorageBackend    = "storage.backend"
	keyStorageDataDir    = "storage.data_dir"
	keyServerAddr        = "server.addr"
	keyGuardrailRules    = "guardrail.rules_file"
	keyPromptsDir        = "prompts.dir"
	keyContextMaxChars   = "pipeline.context_max_chars"
	keyExtractMaxRetries = "pipeline.extract_max_retries"
	keyJobTimeout        = "pipeline.job_timeout_minutes"
	keyChunker           = "pipeline.chunker"
	keyChunkSize         = "pipeline.chunk_size"
	keyChunkOverlap      = "pipeline.chunk_overlap"
)

// envDataDir overrides storage.data_dir.
const envDataDir = "PDA_DATA_DIR"

// apiKeyEnv names the environment variable consulted when a provider has
// no key in the config file.
var apiKeyEnv = map[domain.AIProvider]string{
	domain.AIProviderAnthropic: "ANTHROPIC_API_KEY",
	domain.AIProviderOpenAI:    "OPENAI_API_KEY",
	domain.AIProviderGemini:    "GEMINI_API_KEY",
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get resolves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	llmProvider := s.getProvider(keyLLMProvider, defaults.LLM.Provider)
	embedProvider := s.getEmbeddingProvider(defaults.Embedding.Provider)

	settings := &domain.AppSettings{
		LLM: domain.LLMSettings{
			Provider:          llmProvider,
			Model:             s.getString(keyLLMModel, domain.DefaultLLMModels()[llmProvider]),
			BaseURL:           s.configStore.GetString(keyLLMBaseURL),
			APIKey:            s.apiKey(keyLLMAPIKey, llmProvider),
			Timeout:           time.Duration(s.getInt(keyLLMTimeout, int(defaults.LLM.Timeout/time.Second))) * time.Second,
			RequestsPerSecond: s.getFloat(keyLLMRPS, defaults.LLM.RequestsPerSecond),
			Burst:             s.getInt(keyLLMBurst, defaults.LLM.Burst),
		},
		Embedding: domain.EmbeddingSettings{
			Provider: embedProvider,
			Model:    s.getString(keyEmbedModel, domain.DefaultEmbeddingModels()[embedProvider]),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL),
			APIKey:   s.apiKey(keyEmbedAPIKey, embedProvider),
		},
		Storage: domain.StorageSettings{
			Backend: s.getBackend(defaults.Storage.Backend),
			DataDir: s.getString(keyStorageDataDir, ""),
		},
		Pipeline: domain.PipelineSettings{
			ContextMaxChars:   s.getInt(keyContextMaxChars, defaults.Pipeline.ContextMaxChars),
			ExtractMaxRetries: s.getInt(keyExtractMaxRetries, defaults.Pipeline.ExtractMaxRetries),
			JobTimeout: time.Duration(
				s.getInt(keyJobTimeout, int(defaults.Pipeline.JobTimeout/time.Minute))) * time.Minute,
			Chunker:      s.getString(keyChunker, defaults.Pipeline.Chunker),
			ChunkSize:    s.getInt(keyChunkSize, defaults.Pipeline.ChunkSize),
			ChunkOverlap: s.getInt(keyChunkOverlap, defaults.Pipeline.ChunkOverlap),
		},
		ServerAddr:         s.getString(keyServerAddr, defaults.ServerAddr),
		GuardrailRulesFile: s.configStore.GetString(keyGuardrailRules),
		PromptsDir:         s.configStore.GetString(keyPromptsDir),
	}

	if dir := s.getenv(envDataDir); dir != "" {
		settings.Storage.DataDir = dir
	}

	return settings, nil
}

// SetLLMProvider configures the completion provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return &domain.ValidationError{Field: "llm.provider", Reason: fmt.Sprintf("unsupported provider %q", provider)}
	}
	if model == "" {
		model = domain.DefaultLLMModels()[provider]
	}
	if err := s.configStore.Set(keyLLMProvider, provider.String()); err != nil {
		return fmt.Errorf("save llm provider: %w", err)
	}
	if err := s.configStore.Set(keyLLMModel, model); err != nil {
		return fmt.Errorf("save llm model: %w", err)
	}
	if apiKey != "" {
		if err := s.configStore.Set(keyLLMAPIKey, apiKey); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if provider != domain.AIProviderNone && !provider.SupportsEmbeddings() {
		return &domain.ValidationError{
			Field:  "embedding.provider",
			Reason: fmt.Sprintf("provider %q has no embedding API", provider),
		}
	}
	if model == "" {
		model = domain.DefaultEmbeddingModels()[provider]
	}
	if err := s.configStore.Set(keyEmbedProvider, provider.String()); err != nil {
		return fmt.Errorf("save embedding provider: %w", err)
	}
	if err := s.configStore.Set(keyEmbedModel, model); err != nil {
		return fmt.Errorf("save embedding model: %w", err)
	}
	if apiKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, apiKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	return nil
}

// Set stores a single raw config key.
func (s *SettingsService) Set(key string, value any) error {
	if err := s.configStore.Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Validate checks the resolved settings for internal consistency.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if !settings.LLM.IsConfigured() {
		return fmt.Errorf("llm provider %q is not configured: set %s or %s",
			settings.LLM.Provider, keyLLMAPIKey, apiKeyEnv[settings.LLM.Provider])
	}
	if settings.Embedding.Provider != domain.AIProviderNone && !settings.Embedding.IsConfigured() {
		return fmt.Errorf("embedding provider %q is not configured", settings.Embedding.Provider)
	}
	if settings.Pipeline.ContextMaxChars <= 0 {
		return fmt.Errorf("%s must be positive", keyContextMaxChars)
	}
	if settings.Pipeline.ExtractMaxRetries < 0 {
		return fmt.Errorf("%s must not be negative", keyExtractMaxRetries)
	}
	if settings.Pipeline.ChunkSize <= 0 || settings.Pipeline.ChunkOverlap < 0 ||
		settings.Pipeline.ChunkOverlap >= settings.Pipeline.ChunkSize {
		return fmt.Errorf("%s must be positive and larger than %s", keyChunkSize, keyChunkOverlap)
	}
	return nil
}

// ValidateLLMConfig checks the completion provider by pinging it.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// ValidateEmbeddingConfig checks the embedding provider by pinging it.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

// getFloat accepts TOML floats and integers.
func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val, ok := s.configStore.Get(key)
	if !ok {
		return defaultVal
	}
	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return defaultVal
	}
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getEmbeddingProvider(defaultVal domain.AIProvider) domain.AIProvider {
	val := domain.AIProvider(s.configStore.GetString(keyEmbedProvider))
	if val == domain.AIProviderNone || val.SupportsEmbeddings() {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getBackend(defaultVal domain.StorageBackend) domain.StorageBackend {
	b := domain.StorageBackend(s.configStore.GetString(keyStorageBackend))
	if !b.IsValid() {
		return defaultVal
	}
	return b
}

// LLMFor returns completion settings for provider, keeping the configured
// timeout and rate limits. An empty provider selects the configured one.
// The config file's key and base URL belong to the configured provider;
// any other provider reads its key from the environment.
func (s *SettingsService) LLMFor(provider domain.AIProvider) (domain.LLMSettings, error) {
	settings, err := s.Get()
	if err != nil {
		return domain.LLMSettings{}, err
	}
	llm := settings.LLM
	if provider == "" || provider == llm.Provider {
		return llm, nil
	}
	if !provider.IsValid() {
		return domain.LLMSettings{}, &domain.ValidationError{
			Field:  "provider",
			Reason: fmt.Sprintf("unknown provider %q", provider),
		}
	}
	llm.Provider = provider
	llm.Model = domain.DefaultLLMModels()[provider]
	llm.BaseURL = ""
	llm.APIKey = s.getenv(apiKeyEnv[provider])
	return llm, nil
}

// apiKey returns the configured key, falling back to the provider's
// environment variable.
func (s *SettingsService) apiKey(key string, provider domain.AIProvider) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	if env, ok := apiKeyEnv[provider]; ok {
		return s.getenv(env)
	}
	return ""
}
