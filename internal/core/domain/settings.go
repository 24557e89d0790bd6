package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for completions or embeddings.
type AIProvider string

// Available AI providers.
const (
	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderOpenAI is OpenAI cloud API or any OpenAI-compatible endpoint.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderGemini is Google Gemini API.
	AIProviderGemini AIProvider = "gemini"

	// AIProviderNone disables the service.
	AIProviderNone AIProvider = "none"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderAnthropic, AIProviderOpenAI, AIProviderGemini:
		return true
	default:
		return false
	}
}

// SupportsEmbeddings returns true if the provider offers an embedding API.
func (p AIProvider) SupportsEmbeddings() bool {
	return p == AIProviderOpenAI || p == AIProviderGemini
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderOpenAI:
		return "OpenAI (cloud or compatible)"
	case AIProviderGemini:
		return "Google Gemini (cloud)"
	case AIProviderNone:
		return "Disabled"
	default:
		return unknownDescription
	}
}

// StorageBackend selects where jobs, chunks and artifacts are persisted.
type StorageBackend string

// Storage backends.
const (
	StorageSQLite StorageBackend = "sqlite"
	StorageBadger StorageBackend = "badger"
	StorageMemory StorageBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	return b == StorageSQLite || b == StorageBadger || b == StorageMemory
}

// LLMSettings holds completion provider configuration.
type LLMSettings struct {
	// Provider is the completion service provider.
	Provider AIProvider

	// Model is the model name; empty selects the provider default.
	Model string

	// BaseURL overrides the API endpoint (OpenAI-compatible servers).
	BaseURL string

	// APIKey is the provider API key.
	APIKey string

	// Timeout bounds each completion call.
	Timeout time.Duration

	// RequestsPerSecond and Burst configure client-side rate limiting.
	RequestsPerSecond float64
	Burst             int
}

// IsConfigured returns true if the provider is set up.
func (l LLMSettings) IsConfigured() bool {
	return l.Provider.IsValid() && l.APIKey != ""
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	return e.Provider.SupportsEmbeddings() && e.APIKey != ""
}

// PipelineSettings tunes the generation pipeline.
type PipelineSettings struct {
	// ContextMaxChars caps the retrieval context handed to each section prompt.
	ContextMaxChars int

	// ExtractMaxRetries bounds the fact-sheet JSON repair loop.
	ExtractMaxRetries int

	// JobTimeout is the overall deadline for one background job.
	JobTimeout time.Duration

	// Chunker names the registered splitter used at ingest.
	Chunker string

	// ChunkSize and ChunkOverlap are measured in characters.
	ChunkSize    int
	ChunkOverlap int
}

// DefaultLLMModels returns default models for each completion provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderAnthropic: "claude-sonnet-4-5",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderGemini:    "gemini-2.5-flash",
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderGemini: "gemini-embedding-001",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		"gemini-embedding-001":   768,
	}
}

// DefaultPipelineSettings returns the pipeline defaults.
func DefaultPipelineSettings() PipelineSettings {
	return PipelineSettings{
		ContextMaxChars:   18000,
		ExtractMaxRetries: 2,
		JobTimeout:        30 * time.Minute,
		Chunker:           "recursive",
		ChunkSize:         500,
		ChunkOverlap:      80,
	}
}

// StorageSettings selects the persistence backend.
type StorageSettings struct {
	Backend StorageBackend

	// DataDir holds the database files; empty selects ~/.pda/data.
	DataDir string
}

// AppSettings is the complete resolved configuration.
type AppSettings struct {
	LLM       LLMSettings
	Embedding EmbeddingSettings
	Storage   StorageSettings
	Pipeline  PipelineSettings

	// ServerAddr is the HTTP listen address.
	ServerAddr string

	// GuardrailRulesFile optionally replaces the embedded guardrail rules.
	GuardrailRulesFile string

	// PromptsDir holds the editable prompt templates; empty selects ~/.pda/prompts.
	PromptsDir string
}

// DefaultAppSettings returns settings used when nothing is configured.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		LLM: LLMSettings{
			Provider:          AIProviderAnthropic,
			Model:             DefaultLLMModels()[AIProviderAnthropic],
			Timeout:           120 * time.Second,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Embedding: EmbeddingSettings{
			Provider: AIProviderNone,
		},
		Storage:    StorageSettings{Backend: StorageSQLite},
		Pipeline:   DefaultPipelineSettings(),
		ServerAddr: "127.0.0.1:8080",
	}
}
