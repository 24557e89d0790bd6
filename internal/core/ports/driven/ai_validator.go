package driven

import "github.com/custodia-labs/pda/internal/core/domain"

// AIConfigValidator checks provider settings before they are saved, using
// a cheap live call. Unconfigured settings are valid.
type AIConfigValidator interface {
	ValidateEmbedding(config *domain.EmbeddingSettings) error
	ValidateLLM(config *domain.LLMSettings) error
}
