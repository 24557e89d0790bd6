package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
	"github.com/custodia-labs/pda/internal/logger"
)

// Retrieval defaults for section prompts.
const (
	DefaultContextResults  = 15
	DefaultContextMaxChars = 18000
	contextSnippetChars    = 1500
)

// RetrievalContext is the bounded passage set handed to one prompt.
type RetrievalContext struct {
	// Text is the rendered "[chunk-id] text" snippets joined by blank lines.
	Text string

	// IDs lists the included chunk ids in first-seen order.
	IDs []string

	// Metadata maps every included chunk id to its citation metadata.
	Metadata map[string]domain.ChunkMetadata

	// Texts holds the full retrieved text per included chunk id.
	Texts map[string]string
}

// Contains reports whether id was part of this context.
func (c *RetrievalContext) Contains(id string) bool {
	_, ok := c.Metadata[id]
	return ok
}

func newRetrievalContext() *RetrievalContext {
	return &RetrievalContext{
		Metadata: make(map[string]domain.ChunkMetadata),
		Texts:    make(map[string]string),
	}
}

// ContextBuilder assembles deduplicated, size-capped retrieval context.
// It is deterministic given identical retrieval results and never calls a model.
type ContextBuilder struct {
	retrieval driven.RetrievalService
	perQuery  int
	maxChars  int
}

// NewContextBuilder creates a context builder over the retrieval service.
// Non-positive maxChars selects DefaultContextMaxChars.
func NewContextBuilder(retrieval driven.RetrievalService, maxChars int) *ContextBuilder {
	if maxChars <= 0 {
		maxChars = DefaultContextMaxChars
	}
	return &ContextBuilder{
		retrieval: retrieval,
		perQuery:  DefaultContextResults,
		maxChars:  maxChars,
	}
}

// Build runs each query with the default result count and character budget.
func (b *ContextBuilder) Build(ctx context.Context, productID string, queries []string) (*RetrievalContext, error) {
	return b.BuildN(ctx, productID, queries, b.perQuery, b.maxChars)
}

// BuildN runs each query for the top n passages, keeping the first occurrence
// of every chunk id. Snippets are truncated per chunk; once a snippet would
// push the total past maxChars the remaining results of that query are skipped.
// Retrieval errors are returned as-is, with no partial context.
func (b *ContextBuilder) BuildN(
	ctx context.Context, productID string, queries []string, n, maxChars int,
) (*RetrievalContext, error) {
	if b.retrieval == nil {
		return nil, domain.ErrRetrievalUnavailable
	}

	out := newRetrievalContext()
	seen := make(map[string]struct{})
	parts := make([]string, 0, n)
	total := 0

	for _, q := range queries {
		results, err := b.retrieval.Query(ctx, productID, q, n)
		if err != nil {
			return nil, fmt.Errorf("retrieve %q: %w", q, err)
		}
		for _, r := range results {
			if _, ok := seen[r.ChunkID]; ok {
				continue
			}
			seen[r.ChunkID] = struct{}{}

			snippet := "[" + r.ChunkID + "] " + truncateRunes(r.Text, contextSnippetChars)
			size := utf8.RuneCountInString(snippet)
			if total+size > maxChars {
				break
			}
			parts = append(parts, snippet)
			out.IDs = append(out.IDs, r.ChunkID)
			out.Metadata[r.ChunkID] = r.Metadata
			out.Texts[r.ChunkID] = r.Text
			total += size
		}
	}

	out.Text = strings.Join(parts, "\n\n")
	logger.Debug("Built context: %d chunks, %d chars from %d queries", len(out.IDs), total, len(queries))
	return out, nil
}

// Collect runs each query for the top n passages and returns the
// deduplicated chunks in first-seen order, with no character budget.
func (b *ContextBuilder) Collect(
	ctx context.Context, productID string, queries []string, n int,
) ([]domain.RetrievedChunk, error) {
	if b.retrieval == nil {
		return nil, domain.ErrRetrievalUnavailable
	}

	seen := make(map[string]struct{})
	var out []domain.RetrievedChunk
	for _, q := range queries {
		results, err := b.retrieval.Query(ctx, productID, q, n)
		if err != nil {
			return nil, fmt.Errorf("retrieve %q: %w", q, err)
		}
		for _, r := range results {
			if r.ChunkID == "" {
				continue
			}
			if _, ok := seen[r.ChunkID]; ok {
				continue
			}
			seen[r.ChunkID] = struct{}{}
			out = append(out, r)
		}
	}
	return out, nil
}

// truncateRunes shortens s to at most n runes.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
