package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
)

// Ensure ChunkStore implements the interface.
var _ driven.ChunkStore = (*ChunkStore)(nil)

type chunkKey struct {
	productID string
	id        string
}

// ChunkStore is an in-memory implementation of driven.ChunkStore.
type ChunkStore struct {
	mu     sync.RWMutex
	chunks map[chunkKey]domain.Chunk
}

// NewChunkStore creates a new in-memory chunk store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		chunks: make(map[chunkKey]domain.Chunk),
	}
}

// SaveChunks upserts chunks by product and id.
func (s *ChunkStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		c.Embedding = append([]float32(nil), c.Embedding...)
		s.chunks[chunkKey{c.ProductID, c.ID}] = c
	}
	return nil
}

// GetChunk retrieves one chunk of a product.
func (s *ChunkStore) GetChunk(_ context.Context, productID, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[chunkKey{productID, id}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &chunk, nil
}

// ListChunks returns all chunks for a product ordered by id.
func (s *ChunkStore) ListChunks(_ context.Context, productID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Chunk, 0)
	for _, c := range s.chunks {
		if c.ProductID == productID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// CountChunks returns the number of chunks stored for a product.
func (s *ChunkStore) CountChunks(_ context.Context, productID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.chunks {
		if c.ProductID == productID {
			n++
		}
	}
	return n, nil
}

// DeleteSourceChunks removes the chunks a product indexed from one source.
func (s *ChunkStore) DeleteSourceChunks(_ context.Context, productID string, kind domain.SourceKind, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, c := range s.chunks {
		if k.productID == productID && c.Kind == kind && c.SourceFile == source {
			delete(s.chunks, k)
		}
	}
	return nil
}

// DeleteChunks removes every chunk of a product.
func (s *ChunkStore) DeleteChunks(_ context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.chunks {
		if k.productID == productID {
			delete(s.chunks, k)
		}
	}
	return nil
}
