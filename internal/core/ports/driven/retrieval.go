package driven

import (
	"context"

	"github.com/custodia-labs/pda/internal/core/domain"
)

// RetrievalService is nearest-neighbour search over a product's indexed chunks.
type RetrievalService interface {
	// Query returns up to n chunks ordered by relevance to text.
	Query(ctx context.Context, productID, text string, n int) ([]domain.RetrievedChunk, error)
}
