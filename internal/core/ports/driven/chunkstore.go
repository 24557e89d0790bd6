package driven

import (
	"context"

	"github.com/custodia-labs/pda/internal/core/domain"
)

// ChunkStore persists chunks and their embeddings per product. Chunk ids
// are only unique within a product, so every lookup is scoped by product.
type ChunkStore interface {
	// SaveChunks upserts chunks by (product, id). Re-saving identical input is a no-op.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetChunk retrieves one chunk of a product.
	// Returns domain.ErrNotFound if it does not exist.
	GetChunk(ctx context.Context, productID, id string) (*domain.Chunk, error)

	// ListChunks returns all chunks for a product ordered by id.
	ListChunks(ctx context.Context, productID string) ([]domain.Chunk, error)

	// CountChunks returns the number of chunks stored for a product.
	CountChunks(ctx context.Context, productID string) (int, error)

	// DeleteSourceChunks removes the chunks a product indexed from one source.
	DeleteSourceChunks(ctx context.Context, productID string, kind domain.SourceKind, source string) error

	// DeleteChunks removes every chunk of a product.
	DeleteChunks(ctx context.Context, productID string) error
}
