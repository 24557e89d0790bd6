package ai

import (
	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator checks provider settings by pinging the provider.
type ConfigValidator struct {
	validateLLM       func(*domain.LLMSettings) error
	validateEmbedding func(*domain.EmbeddingSettings) error
}

// NewConfigValidator creates a validator that makes real provider calls.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		validateLLM:       ValidateLLMConfig,
		validateEmbedding: ValidateEmbeddingConfig,
	}
}

// ValidateEmbedding validates an embedding configuration by pinging the provider.
func (v *ConfigValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	return v.validateEmbedding(config)
}

// ValidateLLM validates a completion configuration by pinging the provider.
func (v *ConfigValidator) ValidateLLM(config *domain.LLMSettings) error {
	return v.validateLLM(config)
}
