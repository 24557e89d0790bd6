package driven

import (
	"context"

	"github.com/custodia-labs/pda/internal/core/domain"
)

// ArtifactStore persists per-product pipeline outputs as opaque JSON documents.
type ArtifactStore interface {
	// SaveArtifact stores or replaces the artifact of the given kind.
	SaveArtifact(ctx context.Context, productID string, kind domain.ArtifactKind, payload []byte) error

	// GetArtifact retrieves the latest artifact of the given kind.
	// Returns domain.ErrNotFound if none has been saved.
	GetArtifact(ctx context.Context, productID string, kind domain.ArtifactKind) ([]byte, error)
}
