package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
)

// mockCompletion implements driven.CompletionService for testing.
// It answers with respond when set, otherwise with responses in call order
// (repeating the last one once exhausted).
type mockCompletion struct {
	mu        sync.Mutex
	respond   func(prompt string) (string, error)
	responses []string
	errs      []error
	prompts   []string
	usage     domain.TokenUsage
	closed    bool
}

func (m *mockCompletion) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := len(m.prompts)
	m.prompts = append(m.prompts, prompt)
	m.usage.PromptTokens += 10
	m.usage.CompletionTokens += 5
	m.usage.TotalTokens += 15

	if m.respond != nil {
		return m.respond(prompt)
	}
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if len(m.responses) == 0 {
		return "", nil
	}
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	return m.responses[i], nil
}

func (m *mockCompletion) Provider() string  { return "mock" }
func (m *mockCompletion) ModelName() string { return "mock-model" }

func (m *mockCompletion) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockCompletion) Usage() domain.TokenUsage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

func (m *mockCompletion) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *mockCompletion) promptsWithPrefix(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, p := range m.prompts {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out
}

// routeByPrompt answers each prompt by the name on its first line,
// see testPrompts. Unrouted prompts get an empty response.
func routeByPrompt(routes map[string]string) func(string) (string, error) {
	return func(prompt string) (string, error) {
		name, _, _ := strings.Cut(prompt, "\n")
		return routes[name], nil
	}
}

// mockPrompts implements driven.PromptStore for testing.
type mockPrompts struct {
	templates map[string]string
	reloads   int
}

func (m *mockPrompts) Load(name string) (string, error) {
	t, ok := m.templates[name]
	if !ok {
		return "", fmt.Errorf("prompt %s: %w", name, os.ErrNotExist)
	}
	return t, nil
}

func (m *mockPrompts) Reload() { m.reloads++ }

// testPrompts returns templates whose first line is the prompt name.
func testPrompts() *mockPrompts {
	section := "\ntone={{.Tone}} length={{.Length}} audience={{.Audience}}\n" +
		"FACTS:\n{{.FactSheetSummary}}\nCONTEXT:\n{{.Context}}"
	return &mockPrompts{templates: map[string]string{
		driven.PromptFactSheetExtract: driven.PromptFactSheetExtract +
			"\n{{range .Chunks}}[{{.ChunkID}}] {{.Text}}\n{{end}}",
		driven.PromptFactSheetFixJSON: driven.PromptFactSheetFixJSON +
			"\nerror: {{.Error}}\ninput: {{.InvalidJSON}}",
		driven.PromptLanding:     driven.PromptLanding + section,
		driven.PromptFAQ:         driven.PromptFAQ + section,
		driven.PromptUseCases:    driven.PromptUseCases + section,
		driven.PromptComparisons: driven.PromptComparisons + section,
		driven.PromptSEO:         driven.PromptSEO + section,
		driven.PromptCriticVerify: driven.PromptCriticVerify +
			"\n{{.FindingTitle}}: {{.FindingRecommendation}}\n{{.Chunks}}",
	}}
}

// mockRetrieval implements driven.RetrievalService for testing.
// Queries without an entry return the fallback results.
type mockRetrieval struct {
	mu       sync.Mutex
	results  map[string][]domain.RetrievedChunk
	fallback []domain.RetrievedChunk
	err      error
	queries  []string
}

func (m *mockRetrieval) Query(_ context.Context, _ string, text string, n int) ([]domain.RetrievedChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, text)
	if m.err != nil {
		return nil, m.err
	}
	res, ok := m.results[text]
	if !ok {
		res = m.fallback
	}
	if len(res) > n {
		res = res[:n]
	}
	return res, nil
}

func retrieved(id, text string, page int) domain.RetrievedChunk {
	return domain.RetrievedChunk{
		ChunkID:  id,
		Text:     text,
		Metadata: domain.ChunkMetadata{SourceFile: "brochure.pdf", Page: page},
		Score:    1,
	}
}

// mockResolver implements driven.CompletionResolver for testing.
// When gate is set, Resolve blocks until it is closed.
type mockResolver struct {
	mu    sync.Mutex
	llm   driven.CompletionService
	err   error
	gate  chan struct{}
	calls []string
}

func (m *mockResolver) Resolve(provider, model string) (driven.CompletionService, error) {
	m.mu.Lock()
	m.calls = append(m.calls, provider+"/"+model)
	gate := m.gate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.llm, nil
}

// mockEmbedder implements driven.EmbeddingService for testing.
// Vectors are looked up by exact text, falling back to vec.
type mockEmbedder struct {
	mu      sync.Mutex
	vec     []float32
	byText  map[string][]float32
	err     error
	batches int
}

func (m *mockEmbedder) embed(text string) []float32 {
	if v, ok := m.byText[text]; ok {
		return v
	}
	return m.vec
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.embed(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batches++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.embed(t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int              { return len(m.vec) }
func (m *mockEmbedder) ModelName() string            { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

// mockLoader implements driven.SourceLoader over in-memory pages.
type mockLoader struct {
	pages map[string][]domain.Page
}

func (m *mockLoader) Load(_ context.Context, path string) ([]domain.Page, error) {
	pages, ok := m.pages[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}
	return pages, nil
}

func (m *mockLoader) Supports(path string) bool {
	return !strings.HasSuffix(path, ".docx")
}

// mockChunker implements driven.Chunker with one chunk per non-empty page.
type mockChunker struct{}

func (mockChunker) Chunk(productID string, kind domain.SourceKind, source string, pages []domain.Page) []domain.Chunk {
	var out []domain.Chunk
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		out = append(out, domain.Chunk{
			ID:         domain.ChunkID(kind, source, p.Number, 0),
			ProductID:  productID,
			Kind:       kind,
			SourceFile: source,
			Page:       p.Number,
			Text:       p.Text,
		})
	}
	return out
}

func (mockChunker) Name() string { return "mock" }

// quotaErr is a provider failure that needs human intervention.
var quotaErr = &domain.CompletionError{
	Kind:     domain.CompletionQuotaExceeded,
	Provider: "mock",
	Err:      errors.New("insufficient_quota"),
}
