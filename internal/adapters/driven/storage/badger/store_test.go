package badger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pda/internal/core/domain"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func testJob(id, product, key string, created time.Time) *domain.GenerationJob {
	return &domain.GenerationJob{
		ID:             id,
		ProductID:      product,
		IdempotencyKey: key,
		Status:         domain.JobQueued,
		Params:         domain.GenerationParams{Tone: "technical", Sources: []string{"a.txt"}},
		Metadata:       domain.JobMetadata{Stage: domain.StageQueued},
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func TestJobStore_CreateGetUpdate(t *testing.T) {
	jobs := setupTestStore(t).JobStore()
	ctx := context.Background()

	job := testJob("job_1", "p1", "k1", time.Now().UTC())
	require.NoError(t, jobs.Create(ctx, job))
	assert.Equal(t, int64(1), job.Version)

	assert.ErrorIs(t, jobs.Create(ctx, testJob("job_1", "p1", "k1", time.Now())), domain.ErrAlreadyExists)

	require.NoError(t, job.TransitionTo(domain.JobRunning))
	job.Progress = 42
	job.Metadata.HasFactSheet = true
	require.NoError(t, jobs.Update(ctx, job))
	assert.Equal(t, int64(2), job.Version)

	got, err := jobs.Get(ctx, "job_1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobRunning, got.Status)
	assert.Equal(t, 42, got.Progress)
	assert.True(t, got.Metadata.HasFactSheet)
	assert.Equal(t, domain.Tone("technical"), got.Params.Tone)
	assert.Equal(t, int64(2), got.Version)
}

func TestJobStore_NotFound(t *testing.T) {
	jobs := setupTestStore(t).JobStore()
	ctx := context.Background()

	_, err := jobs.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = jobs.Update(ctx, testJob("missing", "p1", "k", time.Now()))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = jobs.GetByIdempotencyKey(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobStore_GetByIdempotencyKey(t *testing.T) {
	jobs := setupTestStore(t).JobStore()
	ctx := context.Background()
	base := time.Now()

	old := testJob("job_old", "p1", "k1", base)
	require.NoError(t, jobs.Create(ctx, old))
	require.NoError(t, jobs.Create(ctx, testJob("job_other", "p1", "k2", base.Add(2*time.Second))))

	got, err := jobs.GetByIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "job_old", got.ID)

	err = jobs.Create(ctx, testJob("job_dup", "p1", "k1", base.Add(time.Second)))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	require.NoError(t, old.TransitionTo(domain.JobFailed))
	require.NoError(t, jobs.Update(ctx, old))
	_, err = jobs.GetByIdempotencyKey(ctx, "k1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, jobs.Create(ctx, testJob("job_new", "p1", "k1", base.Add(3*time.Second))))
	got, err = jobs.GetByIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "job_new", got.ID)
}

func TestJobStore_List(t *testing.T) {
	jobs := setupTestStore(t).JobStore()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, jobs.Create(ctx, testJob("job_b", "p1", "k1", base)))
	require.NoError(t, jobs.Create(ctx, testJob("job_a", "p1", "k2", base)))
	require.NoError(t, jobs.Create(ctx, testJob("job_c", "p1", "k3", base.Add(time.Second))))
	require.NoError(t, jobs.Create(ctx, testJob("job_d", "p2", "k4", base.Add(2*time.Second))))

	list, err := jobs.List(ctx, "p1")
	require.NoError(t, err)
	ids := make([]string, len(list))
	for i, j := range list {
		ids[i] = j.ID
	}
	assert.Equal(t, []string{"job_c", "job_a", "job_b"}, ids)

	all, err := jobs.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "job_d", all[0].ID)

	none, err := jobs.List(ctx, "p9")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestJobStore_ConcurrentUpdates(t *testing.T) {
	jobs := setupTestStore(t).JobStore()
	ctx := context.Background()
	require.NoError(t, jobs.Create(ctx, testJob("job_1", "p1", "k1", time.Now())))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			job, err := jobs.Get(ctx, "job_1")
			if assert.NoError(t, err) {
				job.Progress = p
				assert.NoError(t, jobs.Update(ctx, job))
			}
		}(i)
	}
	wg.Wait()

	got, err := jobs.Get(ctx, "job_1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), got.Version)
}

func TestChunkStore(t *testing.T) {
	chunks := setupTestStore(t).ChunkStore()
	ctx := context.Background()

	require.NoError(t, chunks.SaveChunks(ctx, []domain.Chunk{
		{ID: "pdf-aaaaaa-p2-c0", ProductID: "p1", Kind: domain.SourceKindPDF, Page: 2, Text: "b", Embedding: []float32{1, 2}},
		{ID: "pdf-aaaaaa-p1-c0", ProductID: "p1", Kind: domain.SourceKindPDF, Page: 1, Text: "a", Heading: "Intro"},
		{ID: "url-bbbbbb-s1-c0", ProductID: "p2", Kind: domain.SourceKindURL, Page: 1, Text: "c"},
	}))

	list, err := chunks.ListChunks(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "pdf-aaaaaa-p1-c0", list[0].ID)
	assert.Equal(t, "Intro", list[0].Heading)
	assert.Equal(t, []float32{1, 2}, list[1].Embedding)

	n, err := chunks.CountChunks(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := chunks.GetChunk(ctx, "p2", "url-bbbbbb-s1-c0")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceKindURL, got.Kind)

	_, err = chunks.GetChunk(ctx, "p1", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, chunks.DeleteChunks(ctx, "p1"))
	n, err = chunks.CountChunks(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = chunks.CountChunks(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestArtifactStore(t *testing.T) {
	artifacts := setupTestStore(t).ArtifactStore()
	ctx := context.Background()

	_, err := artifacts.GetArtifact(ctx, "p1", domain.ArtifactDrafts)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, artifacts.SaveArtifact(ctx, "p1", domain.ArtifactDrafts, []byte(`{"v":1}`)))
	require.NoError(t, artifacts.SaveArtifact(ctx, "p1", domain.ArtifactDrafts, []byte(`{"v":2}`)))

	got, err := artifacts.GetArtifact(ctx, "p1", domain.ArtifactDrafts)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got))

	_, err = artifacts.GetArtifact(ctx, "p1", domain.ArtifactVerifier)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.JobStore().Create(ctx, testJob("job_1", "p1", "k1", time.Now())))
	require.NoError(t, store.Close())

	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.JobStore().Get(ctx, "job_1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ProductID)
}

func TestChunkStore_ScopedByProduct(t *testing.T) {
	chunks := setupTestStore(t).ChunkStore()
	ctx := context.Background()

	id := domain.ChunkID(domain.SourceKindPDF, "brochure.pdf", 1, 0)
	require.NoError(t, chunks.SaveChunks(ctx, []domain.Chunk{
		{ID: id, ProductID: "a", Kind: domain.SourceKindPDF, SourceFile: "brochure.pdf", Text: "meter A"},
		{ID: "pdf-cccccc-p1-c0", ProductID: "a", Kind: domain.SourceKindPDF, SourceFile: "manual.pdf", Text: "manual"},
	}))
	require.NoError(t, chunks.SaveChunks(ctx, []domain.Chunk{
		{ID: id, ProductID: "b", Kind: domain.SourceKindPDF, SourceFile: "brochure.pdf", Text: "meter B"},
	}))

	got, err := chunks.GetChunk(ctx, "a", id)
	require.NoError(t, err)
	assert.Equal(t, "meter A", got.Text)
	got, err = chunks.GetChunk(ctx, "b", id)
	require.NoError(t, err)
	assert.Equal(t, "meter B", got.Text)

	require.NoError(t, chunks.DeleteSourceChunks(ctx, "a", domain.SourceKindPDF, "brochure.pdf"))
	list, err := chunks.ListChunks(ctx, "a")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "manual", list[0].Text)

	n, err := chunks.CountChunks(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
