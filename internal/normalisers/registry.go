package normalisers

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.SourceLoader = (*Registry)(nil)

// PrioritisedLoader is a SourceLoader that ranks itself against others
// supporting the same path. Higher wins.
type PrioritisedLoader interface {
	driven.SourceLoader
	Priority() int
}

// Registry dispatches each path to the best registered loader.
type Registry struct {
	loaders []PrioritisedLoader
}

// NewRegistry creates a registry over loaders.
func NewRegistry(loaders ...PrioritisedLoader) *Registry {
	r := &Registry{}
	for _, l := range loaders {
		r.Register(l)
	}
	return r
}

// Register adds a loader, keeping the list ordered by priority.
func (r *Registry) Register(l PrioritisedLoader) {
	r.loaders = append(r.loaders, l)
	sort.SliceStable(r.loaders, func(i, j int) bool {
		return r.loaders[i].Priority() > r.loaders[j].Priority()
	})
}

// Supports reports whether any loader handles path.
func (r *Registry) Supports(path string) bool {
	return r.find(path) != nil
}

// Load reads path with the highest-priority supporting loader.
func (r *Registry) Load(ctx context.Context, path string) ([]domain.Page, error) {
	l := r.find(path)
	if l == nil {
		return nil, fmt.Errorf("%w: no loader for %s", domain.ErrInvalidInput, path)
	}
	return l.Load(ctx, path)
}

func (r *Registry) find(path string) PrioritisedLoader {
	for _, l := range r.loaders {
		if l.Supports(path) {
			return l
		}
	}
	return nil
}
