package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Tone is the writing tone for generated sections.
type Tone string

// Supported tones.
const (
	ToneNeutral   Tone = "neutral"
	ToneTechnical Tone = "technical"
	ToneMarketing Tone = "marketing"
)

// Length is the target size of generated sections.
type Length string

// Supported lengths.
const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// Audience is the reader the content is written for.
type Audience string

// Supported audiences.
const (
	AudienceEngineer    Audience = "engineer"
	AudienceProcurement Audience = "procurement"
	AudienceOpsManager  Audience = "ops_manager"
)

// GenerationParams are the caller-supplied options for one generation job.
type GenerationParams struct {
	Tone     Tone     `json:"tone" validate:"omitempty,oneof=neutral technical marketing"`
	Length   Length   `json:"length" validate:"omitempty,oneof=short medium long"`
	Audience Audience `json:"audience" validate:"omitempty,oneof=engineer procurement ops_manager"`

	// Provider and Model override the configured completion service.
	Provider string `json:"llm_provider,omitempty" validate:"omitempty,oneof=anthropic openai gemini"`
	Model    string `json:"llm_model,omitempty" validate:"omitempty,max=128"`

	// Sources are optional files ingested before extraction.
	Sources []string `json:"sources,omitempty" validate:"omitempty,dive,required"`

	// URL is an optional product page text dump ingested as url sections.
	URL string `json:"url,omitempty"`

	// AllowBlocked lets report assembly proceed despite verifier blocking issues.
	AllowBlocked bool `json:"allow_blocked,omitempty"`
}

// WithDefaults fills unset tone, length and audience.
func (p GenerationParams) WithDefaults() GenerationParams {
	if p.Tone == "" {
		p.Tone = ToneNeutral
	}
	if p.Length == "" {
		p.Length = LengthMedium
	}
	if p.Audience == "" {
		p.Audience = AudienceOpsManager
	}
	return p
}

// IdempotencyKey derives the dedup key for a generation request.
// Identical (product, tone, length, audience, provider, model) map to the same key.
func IdempotencyKey(productID string, p GenerationParams) string {
	p = p.WithDefaults()
	raw := strings.Join([]string{
		productID,
		string(p.Tone),
		string(p.Length),
		string(p.Audience),
		p.Provider,
		p.Model,
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:32]
}
