package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
)

// maxTxRetries bounds retries of a version bump that lost an optimistic
// transaction conflict.
const maxTxRetries = 10

// Store manages the badgerhold database and hands out store views.
type Store struct {
	store *badgerhold.Store
	dir   string
}

// NewStore opens (or creates) the database in dataDir/badger.
// If dataDir is empty, defaults to ~/.pda/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".pda", "data")
	}
	dir := filepath.Join(dataDir, "badger")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating badger directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("opening badger database: %w", err)
	}
	return &Store{store: store, dir: dir}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// Dir returns the database directory.
func (s *Store) Dir() string {
	return s.dir
}

// JobStore returns a JobStore interface backed by this store.
func (s *Store) JobStore() driven.JobStore {
	return &jobStore{db: s.store}
}

// ChunkStore returns a ChunkStore interface backed by this store.
func (s *Store) ChunkStore() driven.ChunkStore {
	return &chunkStore{db: s.store}
}

// ArtifactStore returns an ArtifactStore interface backed by this store.
func (s *Store) ArtifactStore() driven.ArtifactStore {
	return &artifactStore{db: s.store}
}

// ==================== Job Store ====================

// jobRecord is the persisted form of a generation job.
type jobRecord struct {
	ID             string
	ProductID      string `badgerhold:"index"`
	IdempotencyKey string `badgerhold:"index"`
	Status         string
	Version        int64
	CreatedAt      int64
	Payload        []byte
}

type jobStore struct {
	db *badgerhold.Store
}

var _ driven.JobStore = (*jobStore)(nil)

func newJobRecord(job *domain.GenerationJob) (*jobRecord, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshalling job: %w", err)
	}
	return &jobRecord{
		ID:             job.ID,
		ProductID:      job.ProductID,
		IdempotencyKey: job.IdempotencyKey,
		Status:         string(job.Status),
		Version:        job.Version,
		CreatedAt:      job.CreatedAt.UnixNano(),
		Payload:        payload,
	}, nil
}

func (r *jobRecord) job() (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	if err := json.Unmarshal(r.Payload, &job); err != nil {
		return nil, fmt.Errorf("unmarshalling job %s: %w", r.ID, err)
	}
	job.Version = r.Version
	return &job, nil
}

// Create inserts a new job with version 1.
func (s *jobStore) Create(_ context.Context, job *domain.GenerationJob) error {
	job.Version = 1
	rec, err := newJobRecord(job)
	if err != nil {
		return err
	}
	err = s.db.Badger().Update(func(tx *badger.Txn) error {
		if job.IdempotencyKey != "" {
			var active []jobRecord
			query := badgerhold.Where("IdempotencyKey").Eq(job.IdempotencyKey).
				And("Status").In(string(domain.JobQueued), string(domain.JobRunning)).Limit(1)
			if err := s.db.TxFind(tx, &active, query); err != nil {
				return err
			}
			if len(active) > 0 {
				return domain.ErrAlreadyExists
			}
		}
		return s.db.TxInsert(tx, job.ID, rec)
	})
	if err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) || errors.Is(err, domain.ErrAlreadyExists) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

// Get retrieves a job by ID.
func (s *jobStore) Get(_ context.Context, id string) (*domain.GenerationJob, error) {
	var rec jobRecord
	if err := s.db.Get(id, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting job: %w", err)
	}
	return rec.job()
}

// GetByIdempotencyKey returns the newest queued or running job for key.
func (s *jobStore) GetByIdempotencyKey(_ context.Context, key string) (*domain.GenerationJob, error) {
	var recs []jobRecord
	query := badgerhold.Where("IdempotencyKey").Eq(key).
		And("Status").In(string(domain.JobQueued), string(domain.JobRunning)).
		SortBy("CreatedAt").Reverse().Limit(1)
	if err := s.db.Find(&recs, query); err != nil {
		return nil, fmt.Errorf("finding job by idempotency key: %w", err)
	}
	if len(recs) == 0 {
		return nil, domain.ErrNotFound
	}
	return recs[0].job()
}

// Update overwrites an existing job and bumps its version in one
// transaction, retrying on write conflicts.
func (s *jobStore) Update(_ context.Context, job *domain.GenerationJob) error {
	var version int64
	update := func(tx *badger.Txn) error {
		var current jobRecord
		if err := s.db.TxGet(tx, job.ID, &current); err != nil {
			return err
		}
		next := *job
		next.Version = current.Version + 1
		rec, err := newJobRecord(&next)
		if err != nil {
			return err
		}
		if err := s.db.TxUpdate(tx, job.ID, rec); err != nil {
			return err
		}
		version = next.Version
		return nil
	}

	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = s.db.Badger().Update(update)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		time.Sleep(time.Duration(attempt+1) * time.Millisecond)
	}
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("updating job: %w", err)
	}

	job.Version = version
	return nil
}

// List returns jobs for a product, newest first. Empty productID lists all jobs.
func (s *jobStore) List(_ context.Context, productID string) ([]domain.GenerationJob, error) {
	var query *badgerhold.Query
	if productID != "" {
		query = badgerhold.Where("ProductID").Eq(productID)
	} else {
		query = badgerhold.Where("ID").Ne("")
	}

	var recs []jobRecord
	if err := s.db.Find(&recs, query.SortBy("CreatedAt", "ID")); err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}

	// Ascending (CreatedAt, ID); walk back for newest first, keeping ID
	// ascending within equal timestamps.
	jobs := make([]domain.GenerationJob, 0, len(recs))
	for end := len(recs); end > 0; {
		start := end - 1
		for start > 0 && recs[start-1].CreatedAt == recs[end-1].CreatedAt {
			start--
		}
		for i := start; i < end; i++ {
			job, err := recs[i].job()
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, *job)
		}
		end = start
	}
	return jobs, nil
}

// ==================== Chunk Store ====================

// chunkRecord is the persisted form of a chunk, embedding included.
type chunkRecord struct {
	ID         string
	ProductID  string `badgerhold:"index"`
	Kind       string
	SourceFile string
	Page       int
	Heading    string
	Text       string
	Role       string
	Embedding  []float32
}

func (r *chunkRecord) chunk() domain.Chunk {
	return domain.Chunk{
		ID:         r.ID,
		ProductID:  r.ProductID,
		Kind:       domain.SourceKind(r.Kind),
		SourceFile: r.SourceFile,
		Page:       r.Page,
		Heading:    r.Heading,
		Text:       r.Text,
		Role:       r.Role,
		Embedding:  r.Embedding,
	}
}

type chunkStore struct {
	db *badgerhold.Store
}

var _ driven.ChunkStore = (*chunkStore)(nil)

// SaveChunks upserts chunks in a single transaction.
func (s *chunkStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	err := s.db.Badger().Update(func(tx *badger.Txn) error {
		for _, c := range chunks {
			rec := &chunkRecord{
				ID:         c.ID,
				ProductID:  c.ProductID,
				Kind:       string(c.Kind),
				SourceFile: c.SourceFile,
				Page:       c.Page,
				Heading:    c.Heading,
				Text:       c.Text,
				Role:       c.Role,
				Embedding:  c.Embedding,
			}
			if err := s.db.TxUpsert(tx, chunkKey(c.ProductID, c.ID), rec); err != nil {
				return fmt.Errorf("saving chunk %s: %w", c.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving chunks: %w", err)
	}
	return nil
}

// chunkKey scopes a chunk id to its product; ids repeat across products.
func chunkKey(productID, id string) string {
	return productID + "\x00" + id
}

// GetChunk retrieves one chunk of a product.
func (s *chunkStore) GetChunk(_ context.Context, productID, id string) (*domain.Chunk, error) {
	var rec chunkRecord
	if err := s.db.Get(chunkKey(productID, id), &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting chunk: %w", err)
	}
	c := rec.chunk()
	return &c, nil
}

// ListChunks returns all chunks for a product ordered by id.
func (s *chunkStore) ListChunks(_ context.Context, productID string) ([]domain.Chunk, error) {
	var recs []chunkRecord
	if err := s.db.Find(&recs, badgerhold.Where("ProductID").Eq(productID).SortBy("ID")); err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	chunks := make([]domain.Chunk, len(recs))
	for i := range recs {
		chunks[i] = recs[i].chunk()
	}
	return chunks, nil
}

// CountChunks returns the number of chunks stored for a product.
func (s *chunkStore) CountChunks(_ context.Context, productID string) (int, error) {
	n, err := s.db.Count(&chunkRecord{}, badgerhold.Where("ProductID").Eq(productID))
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return int(n), nil
}

// DeleteSourceChunks removes the chunks a product indexed from one source.
func (s *chunkStore) DeleteSourceChunks(
	_ context.Context, productID string, kind domain.SourceKind, source string,
) error {
	query := badgerhold.Where("ProductID").Eq(productID).
		And("Kind").Eq(string(kind)).
		And("SourceFile").Eq(source)
	if err := s.db.DeleteMatching(&chunkRecord{}, query); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", source, err)
	}
	return nil
}

// DeleteChunks removes every chunk of a product.
func (s *chunkStore) DeleteChunks(_ context.Context, productID string) error {
	if err := s.db.DeleteMatching(&chunkRecord{}, badgerhold.Where("ProductID").Eq(productID)); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// ==================== Artifact Store ====================

type artifactRecord struct {
	ProductID string
	Kind      string
	Payload   []byte
	UpdatedAt int64
}

type artifactStore struct {
	db *badgerhold.Store
}

var _ driven.ArtifactStore = (*artifactStore)(nil)

func artifactKey(productID string, kind domain.ArtifactKind) string {
	return productID + "/" + string(kind)
}

// SaveArtifact stores or replaces the artifact of the given kind.
func (s *artifactStore) SaveArtifact(_ context.Context, productID string, kind domain.ArtifactKind, payload []byte) error {
	rec := &artifactRecord{
		ProductID: productID,
		Kind:      string(kind),
		Payload:   payload,
		UpdatedAt: time.Now().UnixNano(),
	}
	if err := s.db.Upsert(artifactKey(productID, kind), rec); err != nil {
		return fmt.Errorf("saving %s artifact: %w", kind, err)
	}
	return nil
}

// GetArtifact retrieves the latest artifact of the given kind.
func (s *artifactStore) GetArtifact(_ context.Context, productID string, kind domain.ArtifactKind) ([]byte, error) {
	var rec artifactRecord
	if err := s.db.Get(artifactKey(productID, kind), &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("reading %s artifact: %w", kind, err)
	}
	return rec.Payload, nil
}
