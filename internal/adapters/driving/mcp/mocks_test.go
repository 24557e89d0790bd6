package mcp

import (
	"context"

	"github.com/custodia-labs/pda/internal/core/domain"
)

// mockGenerationService is a mock implementation of driving.GenerationService.
type mockGenerationService struct {
	job     *domain.GenerationJob
	created bool
	drafts  *domain.DraftsArtifact
	err     error

	startedProduct string
	startedParams  domain.GenerationParams
}

func (m *mockGenerationService) Start(
	_ context.Context,
	productID string,
	params domain.GenerationParams,
) (*domain.GenerationJob, bool, error) {
	m.startedProduct = productID
	m.startedParams = params
	if m.err != nil {
		return nil, false, m.err
	}
	return m.job, m.created, nil
}

func (m *mockGenerationService) Get(_ context.Context, jobID string) (*domain.GenerationJob, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.job == nil || m.job.ID != jobID {
		return nil, domain.ErrNotFound
	}
	return m.job, nil
}

func (m *mockGenerationService) List(_ context.Context, _ string) ([]domain.GenerationJob, error) {
	if m.job == nil {
		return nil, m.err
	}
	return []domain.GenerationJob{*m.job}, m.err
}

func (m *mockGenerationService) LatestDrafts(_ context.Context, _ string) (*domain.DraftsArtifact, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.drafts == nil {
		return nil, domain.ErrNotFound
	}
	return m.drafts, nil
}

// mockVerifierService is a mock implementation of driving.VerifierService.
type mockVerifierService struct {
	report *domain.VerifierReport
	err    error
}

func (m *mockVerifierService) Verify(_ context.Context, _ string) (*domain.VerifierReport, error) {
	return m.report, m.err
}

// mockFactSheetService is a mock implementation of driving.FactSheetService.
type mockFactSheetService struct {
	artifact *domain.FactSheetArtifact
	err      error
}

func (m *mockFactSheetService) Extract(_ context.Context, _ string) (*domain.FactSheetArtifact, error) {
	return m.artifact, m.err
}

func (m *mockFactSheetService) Get(_ context.Context, _ string) (*domain.FactSheetArtifact, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.artifact == nil {
		return nil, domain.ErrNotFound
	}
	return m.artifact, nil
}

func succeededJob() *domain.GenerationJob {
	drafts := domain.NewContentDrafts()
	drafts.LandingPage.ProblemStatement = "Manual flow readings drift"
	return &domain.GenerationJob{
		ID:        "job_0123456789abcdef",
		ProductID: "fm-200",
		Status:    domain.JobSucceeded,
		Progress:  100,
		Drafts:    drafts,
		Metadata:  domain.JobMetadata{Stage: domain.StageDone, StageDetail: "Complete"},
	}
}
