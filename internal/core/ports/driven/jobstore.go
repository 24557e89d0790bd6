package driven

import (
	"context"

	"github.com/custodia-labs/pda/internal/core/domain"
)

// JobStore persists generation jobs.
//
// This is the only state shared between the background driver and polling
// clients. Update must be atomic per record; concurrent updates to the same
// job are last-write-wins.
type JobStore interface {
	// Create persists a new job and indexes it by idempotency key.
	// Returns domain.ErrAlreadyExists if the id is taken or another job with
	// the same idempotency key is still queued or running.
	Create(ctx context.Context, job *domain.GenerationJob) error

	// Get retrieves a job by ID.
	// Returns domain.ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*domain.GenerationJob, error)

	// GetByIdempotencyKey returns the job for key only while it is queued or running.
	// Returns domain.ErrNotFound otherwise.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.GenerationJob, error)

	// Update overwrites the mutable fields of an existing job and bumps its version.
	// Returns domain.ErrNotFound if the job does not exist.
	Update(ctx context.Context, job *domain.GenerationJob) error

	// List returns jobs for a product, newest first. Empty productID lists all jobs.
	List(ctx context.Context, productID string) ([]domain.GenerationJob, error)
}
