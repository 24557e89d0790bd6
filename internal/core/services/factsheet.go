package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
	"github.com/custodia-labs/pda/internal/core/ports/driving"
	"github.com/custodia-labs/pda/internal/logger"
)

// Ensure FactSheetService implements the interface.
var _ driving.FactSheetService = (*FactSheetService)(nil)

// FactSheetService extracts fact sheets and persists them as product artifacts.
type FactSheetService struct {
	extractor *FactSheetExtractor
	artifacts driven.ArtifactStore
	resolver  driven.CompletionResolver
}

// NewFactSheetService creates a fact-sheet service.
// The resolver may be nil, in which case Extract reports ErrCompletionUnavailable.
func NewFactSheetService(
	extractor *FactSheetExtractor,
	artifacts driven.ArtifactStore,
	resolver driven.CompletionResolver,
) *FactSheetService {
	return &FactSheetService{
		extractor: extractor,
		artifacts: artifacts,
		resolver:  resolver,
	}
}

// Extract runs extraction with the configured completion service.
func (s *FactSheetService) Extract(ctx context.Context, productID string) (*domain.FactSheetArtifact, error) {
	if s.resolver == nil {
		return nil, domain.ErrCompletionUnavailable
	}
	llm, err := s.resolver.Resolve("", "")
	if err != nil {
		return nil, fmt.Errorf("resolve completion service: %w", err)
	}
	defer llm.Close()

	return s.ExtractWith(ctx, llm, productID)
}

// ExtractWith runs extraction with an explicit completion service and stores the result.
func (s *FactSheetService) ExtractWith(
	ctx context.Context, llm driven.CompletionService, productID string,
) (*domain.FactSheetArtifact, error) {
	artifact, err := s.extractor.Extract(ctx, llm, productID)
	if err != nil {
		return nil, err
	}
	for _, v := range artifact.Violations {
		logger.Warn("Fact sheet evidence violation: %s", v.Message)
	}
	if err := saveArtifact(ctx, s.artifacts, productID, domain.ArtifactFactSheet, artifact); err != nil {
		return nil, err
	}
	return artifact, nil
}

// Get returns the stored fact sheet for productID.
func (s *FactSheetService) Get(ctx context.Context, productID string) (*domain.FactSheetArtifact, error) {
	var artifact domain.FactSheetArtifact
	if err := loadArtifact(ctx, s.artifacts, productID, domain.ArtifactFactSheet, &artifact); err != nil {
		return nil, err
	}
	if artifact.Sheet == nil {
		return nil, fmt.Errorf("fact sheet artifact for %s: %w", productID, domain.ErrNotFound)
	}
	return &artifact, nil
}

func saveArtifact(
	ctx context.Context, store driven.ArtifactStore, productID string, kind domain.ArtifactKind, v any,
) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s artifact: %w", kind, err)
	}
	if err := store.SaveArtifact(ctx, productID, kind, payload); err != nil {
		return fmt.Errorf("save %s artifact: %w", kind, err)
	}
	return nil
}

func loadArtifact(
	ctx context.Context, store driven.ArtifactStore, productID string, kind domain.ArtifactKind, v any,
) error {
	payload, err := store.GetArtifact(ctx, productID, kind)
	if err != nil {
		return fmt.Errorf("get %s artifact: %w", kind, err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode %s artifact: %w", kind, err)
	}
	return nil
}
