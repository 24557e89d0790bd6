// Package gemini provides a completion service adapter for Google's
// Gemini API via the genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/custodia-labs/pda/internal/adapters/driven/llm"
	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
)

// Ensure Service implements the interfaces.
var (
	_ driven.CompletionService = (*Service)(nil)
	_ driven.UsageReporter     = (*Service)(nil)
)

// ProviderName is reported by Provider and in completion errors.
const ProviderName = "gemini"

// Default configuration values.
const (
	DefaultModel   = "gemini-2.5-flash"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the Gemini completion service.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// Model is the model to use (default: gemini-2.5-flash).
	Model string

	// Timeout is the HTTP request timeout (default: 120s).
	Timeout time.Duration
}

// Service completes prompts with a Gemini model.
type Service struct {
	client *genai.Client
	model  string
	usage  llm.UsageCounter
}

// NewService creates a new Gemini completion service.
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

	client, err := NewClient(ctx, cfg.APIKey, cfg.BaseURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return &Service{client: client, model: cfg.Model}, nil
}

// NewClient builds a genai client for the Gemini API backend.
func NewClient(ctx context.Context, apiKey, baseURL string, timeout time.Duration) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return client, nil
}

// Complete sends prompt as a single user turn.
func (s *Service) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), nil)
	if err != nil {
		return "", Classify(err)
	}
	if u := resp.UsageMetadata; u != nil {
		s.usage.Add(int(u.PromptTokenCount), int(u.CandidatesTokenCount), int(u.TotalTokenCount))
	}

	text := resp.Text()
	if text == "" {
		return "", &domain.CompletionError{
			Kind:     domain.CompletionOther,
			Provider: ProviderName,
			Err:      errors.New("no text content returned"),
		}
	}
	return text, nil
}

// Classify maps a genai failure onto a completion error. The SDK's error
// type carries the HTTP code; its message is checked as a fallback.
func Classify(err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return llm.Classify(ProviderName, apiErr.Code, apiErr.Message, err)
	}
	msg := err.Error()
	status := 0
	switch {
	case strings.Contains(msg, "RESOURCE_EXHAUSTED"), strings.Contains(msg, "429"):
		status = http.StatusTooManyRequests
	case strings.Contains(msg, "UNAVAILABLE"), strings.Contains(msg, "503"):
		status = http.StatusServiceUnavailable
	}
	return llm.Classify(ProviderName, status, msg, err)
}

// Ping checks the key and model by fetching the model's metadata.
func (s *Service) Ping(ctx context.Context) error {
	if _, err := s.client.Models.Get(ctx, s.model, nil); err != nil {
		return fmt.Errorf("gemini: ping failed: %w", Classify(err))
	}
	return nil
}

// Provider returns the provider name.
func (s *Service) Provider() string {
	return ProviderName
}

// ModelName returns the name of the model being used.
func (s *Service) ModelName() string {
	return s.model
}

// Usage returns cumulative token usage.
func (s *Service) Usage() domain.TokenUsage {
	return s.usage.Usage()
}

// Close releases resources.
func (s *Service) Close() error {
	return nil
}
