package cli

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driving"
)

// mockIngest implements driving.IngestService for testing.
type mockIngest struct {
	req driving.IngestRequest
	res *driving.IngestResult
	err error
}

func (m *mockIngest) Ingest(_ context.Context, req driving.IngestRequest) (*driving.IngestResult, error) {
	m.req = req
	if m.err != nil {
		return nil, m.err
	}
	return m.res, nil
}

// mockFactSheets implements driving.FactSheetService for testing.
type mockFactSheets struct {
	artifact  *domain.FactSheetArtifact
	err       error
	extracted []string
}

func (m *mockFactSheets) Extract(_ context.Context, productID string) (*domain.FactSheetArtifact, error) {
	m.extracted = append(m.extracted, productID)
	if m.err != nil {
		return nil, m.err
	}
	return m.artifact, nil
}

func (m *mockFactSheets) Get(context.Context, string) (*domain.FactSheetArtifact, error) {
	if m.artifact == nil {
		return nil, domain.ErrNotFound
	}
	return m.artifact, nil
}

// mockVerifier implements driving.VerifierService for testing.
type mockVerifier struct {
	report *domain.VerifierReport
	err    error
}

func (m *mockVerifier) Verify(context.Context, string) (*domain.VerifierReport, error) {
	return m.report, m.err
}

// mockGeneration implements driving.GenerationService for testing.
// Get walks through snaps, repeating the last one.
type mockGeneration struct {
	mu      sync.Mutex
	started *domain.GenerationJob
	created bool
	params  domain.GenerationParams
	snaps   []*domain.GenerationJob
	gets    int
	waited  bool
	err     error
}

func (m *mockGeneration) Start(_ context.Context, _ string, p domain.GenerationParams) (*domain.GenerationJob, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params = p
	if m.err != nil {
		return nil, false, m.err
	}
	return m.started, m.created, nil
}

func (m *mockGeneration) Get(context.Context, string) (*domain.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snaps) == 0 {
		return nil, domain.ErrNotFound
	}
	i := min(m.gets, len(m.snaps)-1)
	m.gets++
	return m.snaps[i], nil
}

func (m *mockGeneration) List(context.Context, string) ([]domain.GenerationJob, error) {
	return nil, nil
}

func (m *mockGeneration) LatestDrafts(context.Context, string) (*domain.DraftsArtifact, error) {
	return nil, domain.ErrNotFound
}

func (m *mockGeneration) Wait() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waited = true
}

// mockSettings implements driving.SettingsService for testing.
type mockSettings struct {
	settings    domain.AppSettings
	validateErr error
	pingErr     error
	set         map[string]any
	llm         []string
	embedding   []string
}

func (m *mockSettings) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettings) LLMFor(domain.AIProvider) (domain.LLMSettings, error) {
	return m.settings.LLM, nil
}

func (m *mockSettings) SetLLMProvider(p domain.AIProvider, model, apiKey string) error {
	m.llm = []string{string(p), model, apiKey}
	return nil
}

func (m *mockSettings) SetEmbeddingProvider(p domain.AIProvider, model, apiKey string) error {
	m.embedding = []string{string(p), model, apiKey}
	return nil
}

func (m *mockSettings) Set(key string, value any) error {
	if m.set == nil {
		m.set = map[string]any{}
	}
	m.set[key] = value
	return nil
}

func (m *mockSettings) Validate() error                { return m.validateErr }
func (m *mockSettings) ValidateLLMConfig() error       { return m.pingErr }
func (m *mockSettings) ValidateEmbeddingConfig() error { return m.pingErr }

// testServices are the mocks installed by setupTestServices.
type testServices struct {
	ingest     *mockIngest
	factSheets *mockFactSheets
	verifier   *mockVerifier
	generation *mockGeneration
	settings   *mockSettings
}

func runningJob() *domain.GenerationJob {
	return &domain.GenerationJob{
		ID:        "job_0123456789abcdef",
		ProductID: "fm-200",
		Status:    domain.JobQueued,
		Metadata:  domain.JobMetadata{Stage: domain.StageQueued},
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func succeededJob() *domain.GenerationJob {
	j := runningJob()
	j.Status = domain.JobSucceeded
	j.Progress = 100
	j.Metadata = domain.JobMetadata{
		Stage:        domain.StageDone,
		StageDetail:  "Drafts ready",
		HasFactSheet: true,
		HasAudit:     true,
		HasContent:   true,
		ContentMetadata: &domain.GenerationMetadata{
			Provider:   "anthropic",
			Model:      "claude-sonnet-4-5",
			TokenUsage: domain.TokenUsage{TotalTokens: 900},
		},
	}
	d := domain.NewContentDrafts()
	d.FAQ = append(d.FAQ, domain.FAQItem{Question: "Is it accurate?", Answer: "Yes."})
	d.SEO.TitleTag = "FM-200 Flow Meter"
	j.Drafts = d
	return j
}

// setupTestServices installs mocks for every service and returns a cleanup
// function that restores the previous services and flag values.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		ingest:     &mockIngest{res: &driving.IngestResult{Chunks: 12, Embedded: 12}},
		factSheets: &mockFactSheets{},
		verifier:   &mockVerifier{report: &domain.VerifierReport{}},
		generation: &mockGeneration{started: runningJob(), created: true},
		settings:   &mockSettings{settings: domain.DefaultAppSettings()},
	}

	oldIngest, oldFacts, oldVerifier := ingestService, factSheetService, verifierService
	oldGen, oldSettings, oldInterval := generationService, settingsService, pollInterval

	SetServices(Services{
		Ingest:     ts.ingest,
		FactSheet:  ts.factSheets,
		Verifier:   ts.verifier,
		Generation: ts.generation,
		Settings:   ts.settings,
	})
	pollInterval = time.Millisecond

	return ts, func() {
		ingestService, factSheetService, verifierService = oldIngest, oldFacts, oldVerifier
		generationService, settingsService, pollInterval = oldGen, oldSettings, oldInterval

		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		ingestURLFiles = nil
		factSheetJSON = false
		verifyJSON, verifyAllowBlocked = false, false
		generateTone, generateLength, generateAudience = "", "", ""
		generateProvider, generateModel = "", ""
		generateAllowBlocked, generateWait, generateJSON = false, false, false
		jobJSON = false
	}
}
