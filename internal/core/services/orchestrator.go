package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
	"github.com/custodia-labs/pda/internal/core/ports/driving"
	"github.com/custodia-labs/pda/internal/logger"
)

// Ensure GenerationService implements the interface.
var _ driving.GenerationService = (*GenerationService)(nil)

// DefaultJobTimeout bounds one background pipeline run.
const DefaultJobTimeout = 30 * time.Minute

// staleGrace is how long past its timeout an active job may go without an
// update before it is treated as abandoned by a driver that died.
const staleGrace = time.Minute

// GenerationDeps are the collaborators of the generation service.
type GenerationDeps struct {
	Jobs      driven.JobStore
	Artifacts driven.ArtifactStore
	Chunks    driven.ChunkStore
	Resolver  driven.CompletionResolver

	Ingest     *IngestService
	FactSheets *FactSheetService
	Auditor    *Auditor
	Verifier   *Verifier
	Content    *ContentGenerator
}

// GenerationService creates generation jobs and drives each one through
// ingest, fact extraction, audit and content generation in a background
// goroutine. Request handlers only ever create and read job records.
type GenerationService struct {
	deps       GenerationDeps
	validate   *validator.Validate
	jobTimeout time.Duration
	newID      func() string
	now        func() time.Time

	// mu serialises the idempotency lookup with job creation.
	mu sync.Mutex

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewGenerationService creates a generation service.
// A non-positive jobTimeout selects DefaultJobTimeout.
func NewGenerationService(deps GenerationDeps, jobTimeout time.Duration) *GenerationService {
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &GenerationService{
		deps:       deps,
		validate:   newParamsValidator(),
		jobTimeout: jobTimeout,
		newID:      newJobID,
		now:        time.Now,
		baseCtx:    ctx,
		cancel:     cancel,
	}
}

func newJobID() string {
	return "job_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func newParamsValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateParams checks generation parameters against their allowed values.
func (s *GenerationService) ValidateParams(params domain.GenerationParams) error {
	err := s.validate.Struct(params)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := "failed " + fe.Tag()
		if fe.Param() != "" {
			reason += " " + fe.Param()
		}
		return &domain.ValidationError{Field: fe.Field(), Reason: reason}
	}
	return fmt.Errorf("validate params: %w", err)
}

// Start creates a queued job for productID and launches its driver. While a
// job with the same idempotency key is queued or running, that job is
// returned instead and created is false.
func (s *GenerationService) Start(
	ctx context.Context, productID string, params domain.GenerationParams,
) (*domain.GenerationJob, bool, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, false, &domain.ValidationError{Field: "product_id", Reason: "must not be empty"}
	}
	if err := s.ValidateParams(params); err != nil {
		return nil, false, err
	}
	params = params.WithDefaults()
	key := domain.IdempotencyKey(productID, params)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.deps.Jobs.GetByIdempotencyKey(ctx, key)
	switch {
	case err == nil && s.isStale(existing):
		if err := s.abandon(ctx, existing); err != nil {
			return nil, false, err
		}
	case err == nil:
		logger.Info("Reusing in-flight job %s for %s", existing.ID, productID)
		return existing, false, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, false, fmt.Errorf("lookup idempotency key: %w", err)
	}

	now := s.now().UTC()
	job := &domain.GenerationJob{
		ID:             s.newID(),
		ProductID:      productID,
		IdempotencyKey: key,
		Status:         domain.JobQueued,
		Params:         params,
		Metadata: domain.JobMetadata{
			Stage:       domain.StageQueued,
			StageDetail: "Generation job queued.",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.deps.Jobs.Create(ctx, job); err != nil {
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, false, fmt.Errorf("create job: %w", err)
		}
		// Another process queued the same key between lookup and insert.
		existing, lerr := s.deps.Jobs.GetByIdempotencyKey(ctx, key)
		if lerr != nil {
			return nil, false, fmt.Errorf("create job: %w", err)
		}
		logger.Info("Reusing in-flight job %s for %s", existing.ID, productID)
		return existing, false, nil
	}

	s.wg.Add(1)
	go func(id string) {
		defer s.wg.Done()
		runCtx, cancel := context.WithTimeout(s.baseCtx, s.jobTimeout)
		defer cancel()
		s.drive(runCtx, id)
	}(job.ID)

	logger.Info("Queued job %s for %s", job.ID, productID)
	return job.Clone(), true, nil
}

// RecoverStale fails active jobs whose driver stopped updating them, such as
// jobs left behind by a killed process. It returns how many were failed.
func (s *GenerationService) RecoverStale(ctx context.Context) (int, error) {
	jobs, err := s.deps.Jobs.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list jobs: %w", err)
	}
	n := 0
	for i := range jobs {
		if !s.isStale(&jobs[i]) {
			continue
		}
		if err := s.abandon(ctx, &jobs[i]); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// isStale reports whether job is active yet has not been updated for longer
// than any live driver could run.
func (s *GenerationService) isStale(job *domain.GenerationJob) bool {
	return job.Status.IsActive() && s.now().Sub(job.UpdatedAt) > s.jobTimeout+staleGrace
}

func (s *GenerationService) abandon(ctx context.Context, job *domain.GenerationJob) error {
	idle := s.now().Sub(job.UpdatedAt).Round(time.Second)
	if err := job.TransitionTo(domain.JobFailed); err != nil {
		return err
	}
	job.ErrorMessage = fmt.Sprintf("Job abandoned: no progress for %s.", idle)
	job.UpdatedAt = s.now().UTC()
	if err := s.deps.Jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("fail stale job %s: %w", job.ID, err)
	}
	logger.Warn("Failed stale job %s for %s after %s idle", job.ID, job.ProductID, idle)
	return nil
}

// Get returns the current state of a job.
func (s *GenerationService) Get(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	return s.deps.Jobs.Get(ctx, jobID)
}

// List returns jobs for a product, newest first.
func (s *GenerationService) List(ctx context.Context, productID string) ([]domain.GenerationJob, error) {
	return s.deps.Jobs.List(ctx, productID)
}

// LatestDrafts returns the most recently published drafts for a product.
func (s *GenerationService) LatestDrafts(ctx context.Context, productID string) (*domain.DraftsArtifact, error) {
	var a domain.DraftsArtifact
	if err := loadArtifact(ctx, s.deps.Artifacts, productID, domain.ArtifactDrafts, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Wait blocks until every running driver has returned.
func (s *GenerationService) Wait() {
	s.wg.Wait()
}

// Close cancels running drivers and waits for them to exit.
func (s *GenerationService) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

// jobRun is the state of one driver invocation.
type jobRun struct {
	s   *GenerationService
	job *domain.GenerationJob
	log *zap.SugaredLogger
}

// drive runs the pipeline for one job. Every stage boundary is persisted;
// the first failing stage marks the job failed and ends the run.
func (s *GenerationService) drive(ctx context.Context, jobID string) {
	job, err := s.deps.Jobs.Get(ctx, jobID)
	if err != nil {
		logger.Error("Load job %s: %v", jobID, err)
		return
	}
	if !job.Status.IsActive() {
		logger.Warn("Job %s is %s; not running", jobID, job.Status)
		return
	}

	r := &jobRun{s: s, job: job, log: logger.With("job_id", job.ID, "product_id", job.ProductID)}
	p := job.Params

	if s.deps.Resolver == nil {
		r.fail(ctx, fmt.Sprintf("LLM initialisation failed: %v", domain.ErrCompletionUnavailable))
		return
	}
	llm, err := s.deps.Resolver.Resolve(p.Provider, p.Model)
	if err != nil {
		r.fail(ctx, fmt.Sprintf("LLM initialisation failed: %v", err))
		return
	}
	defer llm.Close()

	if !r.ingest(ctx) {
		return
	}

	// Fact sheet
	r.stage(ctx, 18, domain.StageFactSheet, "Extracting structured product fact sheet…")
	artifact, err := s.deps.FactSheets.ExtractWith(ctx, llm, job.ProductID)
	if err != nil {
		r.fail(ctx, domain.FailureMessage("factsheet extraction", err))
		return
	}
	report := s.deps.Verifier.Verify(artifact.Sheet, nil)
	if err := saveArtifact(ctx, s.deps.Artifacts, job.ProductID, domain.ArtifactVerifier, report); err != nil {
		r.log.Warnw("fact sheet verifier report not saved", "error", err)
	}
	job.Metadata.HasFactSheet = true
	r.stage(ctx, 32, domain.StageFactSheet, "Fact sheet extracted.")

	// Audit
	r.stage(ctx, 35, domain.StageAudit, "Running quality audit (gap analysis)…")
	audit, err := s.deps.Auditor.Run(ctx, llm, job.ProductID, artifact.Sheet, func(pct int, detail string) {
		r.stage(ctx, pct, domain.StageAudit, detail)
	})
	if err == nil {
		err = saveArtifact(ctx, s.deps.Artifacts, job.ProductID, domain.ArtifactAudit, audit)
	}
	if err != nil {
		r.fail(ctx, domain.FailureMessage("audit", err))
		return
	}
	blocked := audit.Verifier.HasBlocked()
	job.Metadata.HasAudit = true
	job.Metadata.VerifierReport = audit.Verifier
	job.Metadata.VerifierBlocked = blocked
	r.stage(ctx, 65, domain.StageAudit, "Audit complete.")

	// Content
	r.stage(ctx, 68, domain.StageContent,
		"Generating web-ready content drafts (landing, FAQ, use-cases, comparisons, SEO)…")
	drafts, meta, err := s.deps.Content.Generate(ctx, llm, job.ProductID, artifact.Sheet, p)
	if err != nil {
		r.fail(ctx, domain.FailureMessage("content generation", err))
		return
	}
	meta.VerifierBlocked = blocked

	if blocked && !p.AllowBlocked {
		r.log.Warnw("verifier blocked; drafts kept on job only", "issues", len(audit.Verifier.BlockedIssues))
	} else {
		published := &domain.DraftsArtifact{Drafts: drafts, Metadata: meta}
		if err := saveArtifact(ctx, s.deps.Artifacts, job.ProductID, domain.ArtifactDrafts, published); err != nil {
			r.log.Warnw("drafts artifact not saved", "error", err)
		}
	}

	r.succeed(ctx, drafts, meta)
}

// ingest runs the ingest stage and reports whether the pipeline may continue.
// A job without sources reuses the product's already indexed chunks.
func (r *jobRun) ingest(ctx context.Context) bool {
	s, job := r.s, r.job
	p := job.Params

	r.stage(ctx, 5, domain.StageIngest, "Parsing and chunking sources…")

	if len(p.Sources) == 0 && p.URL == "" {
		n, err := s.deps.Chunks.CountChunks(ctx, job.ProductID)
		if err != nil {
			r.fail(ctx, domain.FailureMessage("source lookup", err))
			return false
		}
		if n == 0 {
			r.fail(ctx, "No source documents found for product.")
			return false
		}
		r.stage(ctx, 12, domain.StageIngest, fmt.Sprintf("Using %d indexed chunks.", n))
		return true
	}

	req := driving.IngestRequest{ProductID: job.ProductID, Files: p.Sources}
	if p.URL != "" {
		req.URLFiles = []string{p.URL}
	}
	chunks, skipped, err := s.deps.Ingest.Prepare(ctx, req)
	switch {
	case errors.Is(err, domain.ErrNoSourceText):
		r.fail(ctx, "No text chunks could be extracted from the sources.")
		return false
	case err != nil:
		r.fail(ctx, domain.FailureMessage("source parsing", err))
		return false
	}
	if len(skipped) > 0 {
		r.log.Warnw("sources skipped", "sources", skipped)
	}

	r.stage(ctx, 12, domain.StageIngest, fmt.Sprintf("Ingested %d chunks. Building vector store…", len(chunks)))
	if _, err := s.deps.Ingest.Index(ctx, chunks); err != nil {
		r.fail(ctx, domain.FailureMessage("vector store indexing", err))
		return false
	}
	return true
}

// stage records progress at a stage boundary and marks the job running.
func (r *jobRun) stage(ctx context.Context, progress int, stage, detail string) {
	if err := r.job.TransitionTo(domain.JobRunning); err != nil {
		r.log.Errorw("stage update rejected", "error", err)
		return
	}
	r.job.Progress = progress
	r.job.Metadata.Stage = stage
	r.job.Metadata.StageDetail = detail
	r.log.Infow("stage", "stage", stage, "progress", progress, "detail", detail)
	r.save(ctx)
}

func (r *jobRun) fail(ctx context.Context, msg string) {
	if err := r.job.TransitionTo(domain.JobFailed); err != nil {
		r.log.Errorw("failure update rejected", "error", err)
		return
	}
	r.job.ErrorMessage = domain.TruncateMessage(msg, domain.MaxErrorMessageLength)
	r.job.Drafts = nil
	r.log.Warnw("job failed", "error", r.job.ErrorMessage)
	r.save(ctx)
}

func (r *jobRun) succeed(ctx context.Context, drafts *domain.ContentDrafts, meta *domain.GenerationMetadata) {
	if err := r.job.TransitionTo(domain.JobSucceeded); err != nil {
		r.log.Errorw("success update rejected", "error", err)
		return
	}
	r.job.Progress = 100
	r.job.ErrorMessage = ""
	r.job.Drafts = drafts
	r.job.Metadata.Stage = domain.StageDone
	r.job.Metadata.StageDetail = "Pipeline complete, all artifacts ready."
	r.job.Metadata.HasContent = true
	r.job.Metadata.ContentMetadata = meta
	r.log.Infow("job succeeded", "guardrail_warnings", len(meta.GuardrailWarnings))
	r.save(ctx)
}

// save persists the job. Writes use a context detached from the job
// deadline so a timed-out run can still record its failure.
func (r *jobRun) save(ctx context.Context) {
	r.job.UpdatedAt = r.s.now().UTC()
	if err := r.s.deps.Jobs.Update(context.WithoutCancel(ctx), r.job); err != nil {
		r.log.Errorw("job update failed", "error", err)
	}
}
