package driving

import (
	"context"

	"github.com/custodia-labs/pda/internal/core/domain"
)

// GenerationService starts and tracks asynchronous generation jobs.
type GenerationService interface {
	// Start creates a queued job and launches its background driver.
	// If a job with the same idempotency key is still queued or running,
	// that job is returned instead and created is false.
	Start(ctx context.Context, productID string, params domain.GenerationParams) (job *domain.GenerationJob, created bool, err error)

	// Get returns the current state of a job.
	Get(ctx context.Context, jobID string) (*domain.GenerationJob, error)

	// List returns jobs for a product, newest first.
	List(ctx context.Context, productID string) ([]domain.GenerationJob, error)

	// LatestDrafts returns the most recent drafts generated for a product.
	LatestDrafts(ctx context.Context, productID string) (*domain.DraftsArtifact, error)
}
