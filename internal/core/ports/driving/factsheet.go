package driving

import (
	"context"

	"github.com/custodia-labs/pda/internal/core/domain"
)

// FactSheetService extracts and serves product fact sheets.
type FactSheetService interface {
	// Extract runs retrieval and the completion service, then persists the result.
	Extract(ctx context.Context, productID string) (*domain.FactSheetArtifact, error)

	// Get returns the last extracted fact sheet.
	// Returns domain.ErrNotFound if none exists.
	Get(ctx context.Context, productID string) (*domain.FactSheetArtifact, error)
}
