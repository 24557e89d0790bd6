// Package plaintext loads plain text source dumps.
package plaintext

import (
	"context"
	"fmt"
	"os"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
	"github.com/custodia-labs/pda/internal/normalisers"
)

// Ensure Loader implements the interface.
var _ driven.SourceLoader = (*Loader)(nil)

// Loader reads text files whose pages are separated by form feeds,
// the layout pdftotext and similar extractors produce.
type Loader struct{}

// New creates a new plain text loader.
func New() *Loader {
	return &Loader{}
}

// Priority returns the selection priority.
func (l *Loader) Priority() int {
	return 5 // Fallback loader
}

// Supports reports whether path is a plain text file.
func (l *Loader) Supports(path string) bool {
	return normalisers.HasExt(path, ".txt", ".text")
}

// Load reads the file and splits it into pages.
func (l *Loader) Load(ctx context.Context, path string) ([]domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return normalisers.SplitPages(string(data)), nil
}
