package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
)

// Ensure ArtifactStore implements the interface.
var _ driven.ArtifactStore = (*ArtifactStore)(nil)

type artifactKey struct {
	productID string
	kind      domain.ArtifactKind
}

// ArtifactStore is an in-memory implementation of driven.ArtifactStore.
type ArtifactStore struct {
	mu        sync.RWMutex
	artifacts map[artifactKey][]byte
}

// NewArtifactStore creates a new in-memory artifact store.
func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{
		artifacts: make(map[artifactKey][]byte),
	}
}

// SaveArtifact stores or replaces the artifact of the given kind.
func (s *ArtifactStore) SaveArtifact(_ context.Context, productID string, kind domain.ArtifactKind, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[artifactKey{productID, kind}] = append([]byte(nil), payload...)
	return nil
}

// GetArtifact retrieves the latest artifact of the given kind.
func (s *ArtifactStore) GetArtifact(_ context.Context, productID string, kind domain.ArtifactKind) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.artifacts[artifactKey{productID, kind}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), payload...), nil
}
