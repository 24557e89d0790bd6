package driven

import (
	"context"

	"github.com/custodia-labs/pda/internal/core/domain"
)

// SourceLoader extracts ordered page text from a source file.
// PDF and HTML extraction live outside this module; any loader implementing
// this port can be plugged in.
type SourceLoader interface {
	// Load returns the pages of the file at path.
	Load(ctx context.Context, path string) ([]domain.Page, error)

	// Supports reports whether the loader can read the file at path.
	Supports(path string) bool
}

// Chunker splits source pages into chunks with deterministic ids.
type Chunker interface {
	// Chunk splits pages from source into chunks for productID.
	Chunk(productID string, kind domain.SourceKind, source string, pages []domain.Page) []domain.Chunk

	// Name returns the chunker's identifier.
	Name() string
}
