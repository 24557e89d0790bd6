package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
	"github.com/custodia-labs/pda/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driven.RetrievalService = (*RetrievalService)(nil)

// RetrievalService ranks a product's stored chunks against a query.
// With an embedding service and embedded chunks it uses cosine similarity;
// otherwise it falls back to normalised term overlap.
type RetrievalService struct {
	chunks   driven.ChunkStore
	embedder driven.EmbeddingService
}

// NewRetrievalService creates a retrieval service.
// The embedder parameter is optional (can be nil).
func NewRetrievalService(chunks driven.ChunkStore, embedder driven.EmbeddingService) *RetrievalService {
	return &RetrievalService{chunks: chunks, embedder: embedder}
}

// Query returns up to n chunks ordered by score, ties broken by chunk id.
func (s *RetrievalService) Query(ctx context.Context, productID, text string, n int) ([]domain.RetrievedChunk, error) {
	if n <= 0 {
		return []domain.RetrievedChunk{}, nil
	}
	chunks, err := s.chunks.ListChunks(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}

	scores := s.vectorScores(ctx, text, chunks)
	if scores == nil {
		scores = keywordScores(text, chunks)
	}

	results := make([]domain.RetrievedChunk, len(chunks))
	for i := range chunks {
		results[i] = domain.RetrievedChunk{
			ChunkID:  chunks[i].ID,
			Text:     chunks[i].Text,
			Metadata: chunks[i].Metadata(),
			Score:    scores[i],
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// vectorScores returns cosine scores, or nil when vector search is unavailable.
func (s *RetrievalService) vectorScores(ctx context.Context, text string, chunks []domain.Chunk) []float64 {
	if s.embedder == nil || !anyEmbedded(chunks) {
		return nil
	}
	q, err := s.embedder.Embed(ctx, text)
	if err != nil {
		logger.Warn("Query embedding failed, using keyword scoring: %v", err)
		return nil
	}
	scores := make([]float64, len(chunks))
	for i := range chunks {
		scores[i] = cosine(q, chunks[i].Embedding)
	}
	return scores
}

func anyEmbedded(chunks []domain.Chunk) bool {
	for i := range chunks {
		if len(chunks[i].Embedding) > 0 {
			return true
		}
	}
	return false
}

// cosine returns the cosine similarity of a and b, or 0 when undefined.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// keywordScores is the fraction of distinct query terms present in each chunk.
func keywordScores(text string, chunks []domain.Chunk) []float64 {
	terms := termSet(text)
	scores := make([]float64, len(chunks))
	if len(terms) == 0 {
		return scores
	}
	for i := range chunks {
		have := termSet(chunks[i].Text)
		hits := 0
		for t := range terms {
			if _, ok := have[t]; ok {
				hits++
			}
		}
		scores[i] = float64(hits) / float64(len(terms))
	}
	return scores
}

func termSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}
