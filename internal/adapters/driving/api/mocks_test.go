package api

import (
	"context"
	"sync"

	"github.com/custodia-labs/pda/internal/core/domain"
)

type mockGeneration struct {
	mu      sync.Mutex
	jobs    map[string]*domain.GenerationJob
	drafts  *domain.DraftsArtifact
	startFn func(productID string, params domain.GenerationParams) (*domain.GenerationJob, bool, error)
}

func (m *mockGeneration) Start(
	_ context.Context, productID string, params domain.GenerationParams,
) (*domain.GenerationJob, bool, error) {
	return m.startFn(productID, params)
}

func (m *mockGeneration) Get(_ context.Context, jobID string) (*domain.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (m *mockGeneration) List(_ context.Context, productID string) ([]domain.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.GenerationJob
	for _, j := range m.jobs {
		if j.ProductID == productID {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (m *mockGeneration) LatestDrafts(_ context.Context, _ string) (*domain.DraftsArtifact, error) {
	if m.drafts == nil {
		return nil, domain.ErrNotFound
	}
	return m.drafts, nil
}

type mockFactSheets struct {
	artifact *domain.FactSheetArtifact
}

func (m *mockFactSheets) Extract(context.Context, string) (*domain.FactSheetArtifact, error) {
	return m.artifact, nil
}

func (m *mockFactSheets) Get(context.Context, string) (*domain.FactSheetArtifact, error) {
	if m.artifact == nil {
		return nil, domain.ErrNotFound
	}
	return m.artifact, nil
}

type mockVerifier struct {
	report *domain.VerifierReport
	err    error
}

func (m *mockVerifier) Verify(context.Context, string) (*domain.VerifierReport, error) {
	return m.report, m.err
}
