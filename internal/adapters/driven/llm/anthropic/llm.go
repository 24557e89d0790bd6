// Package anthropic provides a completion service adapter using the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

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
const ProviderName = "anthropic"

// Default configuration values.
const (
	DefaultModel     = "claude-sonnet-4-5"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 8192
)

// Config holds configuration for the Anthropic completion service.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL overrides the API endpoint, mostly for tests and proxies.
	BaseURL string

	// Model is the model to use (default: claude-sonnet-4-5).
	Model string

	// Timeout is the HTTP request timeout (default: 120s).
	Timeout time.Duration

	// MaxTokens caps each response (default: 8192).
	MaxTokens int
}

// Service completes prompts with an Anthropic model.
type Service struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	usage     llm.UsageCounter
}

// NewService creates a new Anthropic completion service.
// SDK retries are disabled; throttling and retries belong to the caller.
func NewService(cfg Config) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Service{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
	}, nil
}

// Complete sends prompt as a single user message and returns the text
// blocks of the reply.
func (s *Service) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", classify(err)
	}
	s.usage.Add(int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens), 0)

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", &domain.CompletionError{
			Kind:     domain.CompletionOther,
			Provider: ProviderName,
			Err:      fmt.Errorf("no text content returned (stop reason %q)", resp.StopReason),
		}
	}
	return out.String(), nil
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return llm.Classify(ProviderName, apiErr.StatusCode, apiErr.Error(), err)
	}
	return llm.Classify(ProviderName, 0, "", err)
}

// Ping checks the key by listing models, which runs no inference.
func (s *Service) Ping(ctx context.Context) error {
	if _, err := s.client.Models.List(ctx, anthropic.ModelListParams{}); err != nil {
		return fmt.Errorf("anthropic: ping failed: %w", classify(err))
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
	// HTTP client doesn't need explicit cleanup
	return nil
}
