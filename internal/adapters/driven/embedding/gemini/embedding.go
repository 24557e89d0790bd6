// Package gemini provides an embedding service adapter for Gemini
// embedding models via the genai SDK.
package gemini

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	llmgemini "github.com/custodia-labs/pda/internal/adapters/driven/llm/gemini"
	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
)

// Ensure Service implements the interface.
var _ driven.EmbeddingService = (*Service)(nil)

// Default configuration values.
const (
	DefaultModel   = "gemini-embedding-001"
	DefaultTimeout = 60 * time.Second

	// maxInputs is the API's per-request batch limit.
	maxInputs = 100
)

// Config holds configuration for the Gemini embedding service.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// Model is the embedding model (default: gemini-embedding-001).
	Model string

	// Timeout is the HTTP request timeout (default: 60s).
	Timeout time.Duration

	// Dimensions is the requested output size (default: 768).
	Dimensions int
}

// Service generates embeddings with a Gemini model.
type Service struct {
	client     *genai.Client
	model      string
	dimensions int
}

// NewService creates a new Gemini embedding service.
func NewService(ctx context.Context, cfg Config) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = domain.EmbeddingDimensions()[cfg.Model]
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 768
	}

	client, err := llmgemini.NewClient(ctx, cfg.APIKey, cfg.BaseURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return &Service{client: client, model: cfg.Model, dimensions: cfg.Dimensions}, nil
}

// Embed generates a vector embedding for the given text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in input order, splitting at the batch limit.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	dim := int32(s.dimensions)
	config := &genai.EmbedContentConfig{OutputDimensionality: &dim}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxInputs {
		end := min(start+maxInputs, len(texts))
		batch := texts[start:end]

		contents := make([]*genai.Content, 0, len(batch))
		for _, text := range batch {
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}

		res, err := s.client.Models.EmbedContent(ctx, s.model, contents, config)
		if err != nil {
			return nil, fmt.Errorf("embed texts %d-%d: %w", start, end, llmgemini.Classify(err))
		}
		if len(res.Embeddings) != len(batch) {
			return nil, fmt.Errorf("gemini: embedding count mismatch: got %d, expected %d", len(res.Embeddings), len(batch))
		}
		for _, emb := range res.Embeddings {
			out = append(out, emb.Values)
		}
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *Service) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *Service) ModelName() string {
	return s.model
}

// Ping embeds a single word.
func (s *Service) Ping(ctx context.Context) error {
	if _, err := s.Embed(ctx, "ping"); err != nil {
		return fmt.Errorf("gemini: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (s *Service) Close() error {
	return nil
}
