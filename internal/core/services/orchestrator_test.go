package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/custodia-labs/pda/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
	"github.com/custodia-labs/pda/internal/guardrail"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingJobs keeps a snapshot of every job update.
type recordingJobs struct {
	*memory.JobStore
	mu      sync.Mutex
	updates []domain.GenerationJob
}

func (r *recordingJobs) Update(ctx context.Context, job *domain.GenerationJob) error {
	if err := r.JobStore.Update(ctx, job); err != nil {
		return err
	}
	r.mu.Lock()
	r.updates = append(r.updates, *job.Clone())
	r.mu.Unlock()
	return nil
}

func (r *recordingJobs) progress() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.updates))
	for i, u := range r.updates {
		out[i] = u.Progress
	}
	return out
}

type pipeline struct {
	svc       *GenerationService
	jobs      *recordingJobs
	artifacts *memory.ArtifactStore
	chunks    *memory.ChunkStore
	llm       *mockCompletion
	resolver  *mockResolver
}

// pipelineRoutes answers every prompt of a clean run.
func pipelineRoutes() map[string]string {
	routes := sectionRoutes()
	routes[driven.PromptFactSheetExtract] = validSheetJSON
	routes[driven.PromptCriticVerify] = "Yes, the brochure supports adding this."
	return routes
}

func newPipeline(t *testing.T, routes map[string]string, jobTimeout time.Duration) *pipeline {
	t.Helper()
	jobs := &recordingJobs{JobStore: memory.NewJobStore()}
	artifacts := memory.NewArtifactStore()
	chunks := memory.NewChunkStore()
	require.NoError(t, chunks.SaveChunks(context.Background(), []domain.Chunk{
		{ID: "pdf-abc123-p3-c0", ProductID: "p1", SourceFile: "brochure.pdf", Page: 3, Text: "Weight 350 g. Specifications and overview."},
		{ID: "pdf-abc123-p4-c0", ProductID: "p1", SourceFile: "brochure.pdf", Page: 4, Text: "Not suitable for slurries. Constraints apply."},
	}))

	prompts := testPrompts()
	builder := NewContextBuilder(NewRetrievalService(chunks, nil), 0)
	v, err := guardrail.NewDefault()
	require.NoError(t, err)
	verifier := NewVerifier()

	llm := &mockCompletion{respond: routeByPrompt(routes)}
	resolver := &mockResolver{llm: llm}
	loader := &mockLoader{pages: map[string][]domain.Page{
		"/docs/brochure.pdf": {{Number: 3, Text: "Weight 350 g."}},
		"/docs/blank.pdf":    {{Number: 1, Text: " "}},
	}}

	deps := GenerationDeps{
		Jobs:       jobs,
		Artifacts:  artifacts,
		Chunks:     chunks,
		Resolver:   resolver,
		Ingest:     NewIngestService([]driven.SourceLoader{loader}, mockChunker{}, chunks, nil),
		FactSheets: NewFactSheetService(NewFactSheetExtractor(builder, prompts, DefaultExtractMaxRetries), artifacts, resolver),
		Auditor:    NewAuditor(chunks, prompts, verifier),
		Verifier:   verifier,
		Content:    NewContentGenerator(NewSectionGenerator(builder, prompts), builder, v),
	}
	svc := NewGenerationService(deps, jobTimeout)
	t.Cleanup(func() { _ = svc.Close() })

	return &pipeline{svc: svc, jobs: jobs, artifacts: artifacts, chunks: chunks, llm: llm, resolver: resolver}
}

func (p *pipeline) run(t *testing.T, productID string, params domain.GenerationParams) *domain.GenerationJob {
	t.Helper()
	job, created, err := p.svc.Start(context.Background(), productID, params)
	require.NoError(t, err)
	require.True(t, created)
	p.svc.Wait()

	final, err := p.svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	return final
}

func TestGenerationService_Succeeds(t *testing.T) {
	p := newPipeline(t, pipelineRoutes(), 0)
	ctx := context.Background()

	job, created, err := p.svc.Start(ctx, " p1 ", domain.GenerationParams{Tone: domain.ToneMarketing})
	require.NoError(t, err)
	require.True(t, created)
	assert.Regexp(t, `^job_[0-9a-f]{16}$`, job.ID)
	assert.Equal(t, domain.JobQueued, job.Status)
	assert.Equal(t, "p1", job.ProductID)
	assert.Equal(t, domain.StageQueued, job.Metadata.Stage)
	assert.Equal(t, domain.LengthMedium, job.Params.Length)

	p.svc.Wait()
	final, err := p.svc.Get(ctx, job.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.JobSucceeded, final.Status, final.ErrorMessage)
	assert.Equal(t, 100, final.Progress)
	assert.Empty(t, final.ErrorMessage)
	assert.Equal(t, domain.StageDone, final.Metadata.Stage)
	assert.True(t, final.Metadata.HasFactSheet)
	assert.True(t, final.Metadata.HasAudit)
	assert.True(t, final.Metadata.HasContent)
	assert.False(t, final.Metadata.VerifierBlocked)
	require.NotNil(t, final.Drafts)
	assert.Equal(t, "FlowSense 300", final.Drafts.SEO.TitleTag)
	require.NotNil(t, final.Metadata.ContentMetadata)
	assert.Equal(t, domain.ToneMarketing, final.Metadata.ContentMetadata.Tone)
	assert.Len(t, final.Metadata.ContentMetadata.GuardrailWarnings, 1)

	for _, kind := range []domain.ArtifactKind{
		domain.ArtifactFactSheet, domain.ArtifactAudit, domain.ArtifactDrafts, domain.ArtifactVerifier,
	} {
		_, err := p.artifacts.GetArtifact(ctx, "p1", kind)
		assert.NoError(t, err, kind)
	}
	latest, err := p.svc.LatestDrafts(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Request a demo.", latest.Drafts.LandingPage.CallToAction)

	p.llm.mu.Lock()
	assert.True(t, p.llm.closed)
	p.llm.mu.Unlock()
}

func TestGenerationService_StageProgression(t *testing.T) {
	p := newPipeline(t, pipelineRoutes(), 0)
	final := p.run(t, "p1", domain.GenerationParams{})
	require.Equal(t, domain.JobSucceeded, final.Status, final.ErrorMessage)

	progress := p.jobs.progress()
	assert.Equal(t, []int{5, 12, 18, 32, 35, 42, 50, 58, 65, 68, 100}, progress)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}

	p.jobs.mu.Lock()
	defer p.jobs.mu.Unlock()
	assert.Equal(t, "Using 2 indexed chunks.", p.jobs.updates[1].Metadata.StageDetail)
	for _, u := range p.jobs.updates[:len(p.jobs.updates)-1] {
		assert.Equal(t, domain.JobRunning, u.Status)
	}
	assert.Equal(t, int64(len(p.jobs.updates)+1), p.jobs.updates[len(p.jobs.updates)-1].Version)
}

func TestGenerationService_IdempotentStart(t *testing.T) {
	p := newPipeline(t, pipelineRoutes(), 0)
	gate := make(chan struct{})
	p.resolver.gate = gate
	ctx := context.Background()
	params := domain.GenerationParams{Tone: domain.ToneNeutral, Length: domain.LengthShort, Audience: domain.AudienceEngineer}

	type result struct {
		job     *domain.GenerationJob
		created bool
		err     error
	}
	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			job, created, err := p.svc.Start(ctx, "p1", params)
			results <- result{job, created, err}
		}()
	}
	a, b := <-results, <-results
	require.NoError(t, a.err)
	require.NoError(t, b.err)

	assert.Equal(t, a.job.ID, b.job.ID)
	assert.NotEqual(t, a.created, b.created)

	jobs, err := p.svc.List(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	// Default params map to the same key as their explicit form.
	again, created, err := p.svc.Start(ctx, "p1", domain.GenerationParams{Length: domain.LengthShort, Audience: domain.AudienceEngineer})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a.job.ID, again.ID)

	close(gate)
	p.svc.Wait()

	next, created, err := p.svc.Start(ctx, "p1", params)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, a.job.ID, next.ID)
	p.svc.Wait()
}

func TestGenerationService_DifferentParamsCreateNewJob(t *testing.T) {
	p := newPipeline(t, pipelineRoutes(), 0)
	gate := make(chan struct{})
	p.resolver.gate = gate
	ctx := context.Background()

	first, created, err := p.svc.Start(ctx, "p1", domain.GenerationParams{Tone: domain.ToneNeutral})
	require.NoError(t, err)
	require.True(t, created)
	second, created, err := p.svc.Start(ctx, "p1", domain.GenerationParams{Tone: domain.ToneTechnical})
	require.NoError(t, err)
	require.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)

	close(gate)
	p.svc.Wait()
}

func TestGenerationService_ValidatesInput(t *testing.T) {
	p := newPipeline(t, pipelineRoutes(), 0)
	ctx := context.Background()

	_, _, err := p.svc.Start(ctx, "  ", domain.GenerationParams{})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "product_id", verr.Field)

	_, _, err = p.svc.Start(ctx, "p1", domain.GenerationParams{Tone: "sarcastic"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "tone", verr.Field)
	assert.Equal(t, "failed oneof neutral technical marketing", verr.Reason)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = p.svc.Start(ctx, "p1", domain.GenerationParams{Provider: "cohere"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "llm_provider", verr.Field)

	jobs, err := p.svc.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestGenerationService_Failures(t *testing.T) {
	tests := []struct {
		name    string
		routes  func() map[string]string
		setup   func(p *pipeline)
		params  domain.GenerationParams
		product string
		want    string
		prefix  bool
	}{
		{
			name:    "resolver error",
			routes:  pipelineRoutes,
			setup:   func(p *pipeline) { p.resolver.err = errors.New("missing API key") },
			product: "p1",
			want:    "LLM initialisation failed: missing API key",
		},
		{
			name:    "no sources for product",
			routes:  pipelineRoutes,
			product: "unknown",
			want:    "No source documents found for product.",
		},
		{
			name:    "sources without text",
			routes:  pipelineRoutes,
			params:  domain.GenerationParams{Sources: []string{"/docs/blank.pdf"}},
			product: "p9",
			want:    "No text chunks could be extracted from the sources.",
		},
		{
			name: "extraction quota",
			routes: pipelineRoutes,
			setup: func(p *pipeline) {
				p.llm.respond = func(string) (string, error) { return "", quotaErr }
			},
			product: "p1",
			want:    "API quota/error during factsheet extraction:",
			prefix:  true,
		},
		{
			name: "extraction retries exhausted",
			routes: func() map[string]string {
				r := pipelineRoutes()
				r[driven.PromptFactSheetExtract] = "not json"
				r[driven.PromptFactSheetFixJSON] = "still not json"
				return r
			},
			product: "p1",
			want:    "Factsheet extraction failed: fact sheet extraction failed after 3 attempts:",
			prefix:  true,
		},
		{
			name: "malformed section",
			routes: func() map[string]string {
				r := pipelineRoutes()
				r[driven.PromptComparisons] = "{broken"
				return r
			},
			product: "p1",
			want:    "Content generation failed: comparisons:",
			prefix:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, tt.routes(), 0)
			if tt.setup != nil {
				tt.setup(p)
			}
			final := p.run(t, tt.product, tt.params)

			assert.Equal(t, domain.JobFailed, final.Status)
			assert.Nil(t, final.Drafts)
			if tt.prefix {
				assert.Contains(t, final.ErrorMessage, tt.want)
			} else {
				assert.Equal(t, tt.want, final.ErrorMessage)
			}
			assert.LessOrEqual(t, len([]rune(final.ErrorMessage)), domain.MaxErrorMessageLength)

			_, err := p.artifacts.GetArtifact(context.Background(), tt.product, domain.ArtifactDrafts)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestGenerationService_IngestsSources(t *testing.T) {
	p := newPipeline(t, pipelineRoutes(), 0)
	final := p.run(t, "p2", domain.GenerationParams{Sources: []string{"/docs/brochure.pdf", "/docs/gone.pdf"}})

	require.Equal(t, domain.JobSucceeded, final.Status, final.ErrorMessage)
	n, err := p.chunks.CountChunks(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p.jobs.mu.Lock()
	defer p.jobs.mu.Unlock()
	assert.Equal(t, "Ingested 1 chunks. Building vector store…", p.jobs.updates[1].Metadata.StageDetail)
}

func TestGenerationService_VerifierBlocksPublishing(t *testing.T) {
	routes := pipelineRoutes()
	routes[driven.PromptFactSheetExtract] = `{
		"product_name": "Acme FlowSense 300",
		"key_specs": [{"name": "Weight", "value": "350", "unit": "g", "evidence_chunk_ids": []}]
	}`
	p := newPipeline(t, routes, 0)
	ctx := context.Background()

	final := p.run(t, "p1", domain.GenerationParams{})
	require.Equal(t, domain.JobSucceeded, final.Status, final.ErrorMessage)
	assert.True(t, final.Metadata.VerifierBlocked)
	require.NotNil(t, final.Metadata.VerifierReport)
	assert.Equal(t, "key_specs[0]", final.Metadata.VerifierReport.BlockedIssues[0].FieldPath)
	assert.NotNil(t, final.Drafts)
	assert.True(t, final.Metadata.ContentMetadata.VerifierBlocked)

	_, err := p.svc.LatestDrafts(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	final = p.run(t, "p1", domain.GenerationParams{AllowBlocked: true})
	require.Equal(t, domain.JobSucceeded, final.Status, final.ErrorMessage)
	latest, err := p.svc.LatestDrafts(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, latest.Metadata.VerifierBlocked)
}

// stallingCompletion blocks every call until its context ends.
type stallingCompletion struct {
	mockCompletion
}

func (s *stallingCompletion) Complete(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestGenerationService_JobDeadline(t *testing.T) {
	p := newPipeline(t, pipelineRoutes(), 50*time.Millisecond)
	p.resolver.llm = &stallingCompletion{}

	final := p.run(t, "p1", domain.GenerationParams{})

	assert.Equal(t, domain.JobFailed, final.Status)
	assert.Contains(t, final.ErrorMessage, "Factsheet extraction failed:")
	assert.Contains(t, final.ErrorMessage, context.DeadlineExceeded.Error())
}

func TestGenerationService_CloseCancelsRunningJobs(t *testing.T) {
	p := newPipeline(t, pipelineRoutes(), 0)
	p.resolver.llm = &stallingCompletion{}

	job, _, err := p.svc.Start(context.Background(), "p1", domain.GenerationParams{})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		got, err := p.svc.Get(context.Background(), job.ID)
		return err == nil && got.Progress >= 18
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, p.svc.Close())

	final, err := p.svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, final.Status)
	assert.Contains(t, final.ErrorMessage, context.Canceled.Error())
}

func TestGenerationService_GetUnknownJob(t *testing.T) {
	p := newPipeline(t, pipelineRoutes(), 0)
	_, err := p.svc.Get(context.Background(), "job_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func staleJob(id, productID string, params domain.GenerationParams, status domain.JobStatus, age time.Duration) *domain.GenerationJob {
	params = params.WithDefaults()
	at := time.Now().UTC().Add(-age)
	return &domain.GenerationJob{
		ID:             id,
		ProductID:      productID,
		IdempotencyKey: domain.IdempotencyKey(productID, params),
		Status:         status,
		Params:         params,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

func TestGenerationService_ReplacesAbandonedJob(t *testing.T) {
	p := newPipeline(t, pipelineRoutes(), 0)
	ctx := context.Background()
	params := domain.GenerationParams{Tone: domain.ToneNeutral}

	require.NoError(t, p.jobs.Create(ctx, staleJob("job_dead", "p1", params, domain.JobRunning, 2*time.Hour)))

	job, created, err := p.svc.Start(ctx, "p1", params)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, "job_dead", job.ID)
	p.svc.Wait()

	dead, err := p.svc.Get(ctx, "job_dead")
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, dead.Status)
	assert.Contains(t, dead.ErrorMessage, "abandoned")
}

func TestGenerationService_KeepsRecentActiveJob(t *testing.T) {
	p := newPipeline(t, pipelineRoutes(), 0)
	ctx := context.Background()
	params := domain.GenerationParams{Tone: domain.ToneNeutral}

	require.NoError(t, p.jobs.Create(ctx, staleJob("job_live", "p1", params, domain.JobRunning, 10*time.Minute)))

	job, created, err := p.svc.Start(ctx, "p1", params)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "job_live", job.ID)
}

func TestGenerationService_RecoverStale(t *testing.T) {
	p := newPipeline(t, pipelineRoutes(), 0)
	ctx := context.Background()

	require.NoError(t, p.jobs.Create(ctx, staleJob("job_a", "p1", domain.GenerationParams{Tone: domain.ToneNeutral}, domain.JobQueued, 3*time.Hour)))
	require.NoError(t, p.jobs.Create(ctx, staleJob("job_b", "p2", domain.GenerationParams{}, domain.JobRunning, 5*time.Minute)))
	require.NoError(t, p.jobs.Create(ctx, staleJob("job_c", "p3", domain.GenerationParams{}, domain.JobSucceeded, 3*time.Hour)))

	n, err := p.svc.RecoverStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for id, want := range map[string]domain.JobStatus{
		"job_a": domain.JobFailed,
		"job_b": domain.JobRunning,
		"job_c": domain.JobSucceeded,
	} {
		job, err := p.svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, job.Status, id)
	}
}

// racingJobs hides active jobs from the first lookups, as if another process
// inserted the job after this one looked.
type racingJobs struct {
	*memory.JobStore
	misses int
}

func (r *racingJobs) GetByIdempotencyKey(ctx context.Context, key string) (*domain.GenerationJob, error) {
	if r.misses > 0 {
		r.misses--
		return nil, domain.ErrNotFound
	}
	return r.JobStore.GetByIdempotencyKey(ctx, key)
}

func TestGenerationService_CreateConflictReturnsExisting(t *testing.T) {
	jobs := &racingJobs{JobStore: memory.NewJobStore(), misses: 1}
	ctx := context.Background()
	params := domain.GenerationParams{Tone: domain.ToneNeutral}
	require.NoError(t, jobs.Create(ctx, staleJob("job_other", "p1", params, domain.JobRunning, time.Minute)))

	svc := NewGenerationService(GenerationDeps{Jobs: jobs}, 0)
	t.Cleanup(func() { _ = svc.Close() })

	job, created, err := svc.Start(ctx, "p1", params)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "job_other", job.ID)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
