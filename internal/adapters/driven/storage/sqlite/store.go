package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/pda/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// the job, chunk and artifact stores through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.pda/data/pda.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".pda", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "pda.db")

	// WAL lets pollers read while the job driver writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// JobStore returns a JobStore interface backed by this store.
func (s *Store) JobStore() driven.JobStore {
	return &jobStore{store: s}
}

// ChunkStore returns a ChunkStore interface backed by this store.
func (s *Store) ChunkStore() driven.ChunkStore {
	return &chunkStore{store: s}
}

// ArtifactStore returns an ArtifactStore interface backed by this store.
func (s *Store) ArtifactStore() driven.ArtifactStore {
	return &artifactStore{store: s}
}

// migrate runs all pending migrations and records each applied version.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Job Store ====================

// jobStore implements driven.JobStore.
type jobStore struct {
	store *Store
}

var _ driven.JobStore = (*jobStore)(nil)

// Create inserts a new job with version 1.
func (s *jobStore) Create(ctx context.Context, job *domain.GenerationJob) error {
	job.Version = 1
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshalling job: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO jobs (id, product_id, idempotency_key, status, version, created_at, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.ProductID, job.IdempotencyKey, string(job.Status), job.Version,
		job.CreatedAt.UnixNano(), job.UpdatedAt.UnixNano(), string(payload))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

// Get retrieves a job by ID.
func (s *jobStore) Get(ctx context.Context, id string) (*domain.GenerationJob, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT payload, version FROM jobs WHERE id = ?", id)
	return scanJob(row)
}

// GetByIdempotencyKey returns the newest queued or running job for key.
func (s *jobStore) GetByIdempotencyKey(ctx context.Context, key string) (*domain.GenerationJob, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT payload, version FROM jobs
		WHERE idempotency_key = ? AND status IN (?, ?)
		ORDER BY created_at DESC
		LIMIT 1
	`, key, string(domain.JobQueued), string(domain.JobRunning))
	return scanJob(row)
}

// Update overwrites an existing job and bumps its version.
// The version column is authoritative; the payload copy is ignored on read.
func (s *jobStore) Update(ctx context.Context, job *domain.GenerationJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshalling job: %w", err)
	}

	var version int64
	err = s.store.db.QueryRowContext(ctx, `
		UPDATE jobs SET status = ?, version = version + 1, updated_at = ?, payload = ?
		WHERE id = ?
		RETURNING version
	`, string(job.Status), job.UpdatedAt.UnixNano(), string(payload), job.ID).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("updating job: %w", err)
	}

	job.Version = version
	return nil
}

// List returns jobs for a product, newest first. Empty productID lists all jobs.
func (s *jobStore) List(ctx context.Context, productID string) ([]domain.GenerationJob, error) {
	query := "SELECT payload, version FROM jobs"
	var args []any
	if productID != "" {
		query += " WHERE product_id = ?"
		args = append(args, productID)
	}
	query += " ORDER BY created_at DESC, id ASC"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	jobs := []domain.GenerationJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return jobs, nil
}

// ==================== Chunk Store ====================

// chunkStore implements driven.ChunkStore.
type chunkStore struct {
	store *Store
}

var _ driven.ChunkStore = (*chunkStore)(nil)

const chunkColumns = "id, product_id, kind, source_file, page, heading, text, role, embedding"

// SaveChunks upserts chunks in a single transaction.
func (s *chunkStore) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (`+chunkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_id, id) DO UPDATE SET
			kind = excluded.kind,
			source_file = excluded.source_file,
			page = excluded.page,
			heading = excluded.heading,
			text = excluded.text,
			role = excluded.role,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.ProductID, string(c.Kind), c.SourceFile,
			c.Page, c.Heading, c.Text, c.Role, float32SliceToBytes(c.Embedding)); err != nil {
			return fmt.Errorf("saving chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetChunk retrieves one chunk of a product.
func (s *chunkStore) GetChunk(ctx context.Context, productID, id string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE product_id = ? AND id = ?", productID, id)
	return scanChunk(row)
}

// ListChunks returns all chunks for a product ordered by id.
func (s *chunkStore) ListChunks(ctx context.Context, productID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE product_id = ? ORDER BY id", productID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	chunks := []domain.Chunk{}
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// CountChunks returns the number of chunks stored for a product.
func (s *chunkStore) CountChunks(ctx context.Context, productID string) (int, error) {
	var n int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE product_id = ?", productID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// DeleteSourceChunks removes the chunks a product indexed from one source.
func (s *chunkStore) DeleteSourceChunks(
	ctx context.Context, productID string, kind domain.SourceKind, source string,
) error {
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE product_id = ? AND kind = ? AND source_file = ?",
		productID, string(kind), source)
	if err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", source, err)
	}
	return nil
}

// DeleteChunks removes every chunk of a product.
func (s *chunkStore) DeleteChunks(ctx context.Context, productID string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM chunks WHERE product_id = ?", productID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// ==================== Artifact Store ====================

// artifactStore implements driven.ArtifactStore.
type artifactStore struct {
	store *Store
}

var _ driven.ArtifactStore = (*artifactStore)(nil)

// SaveArtifact stores or replaces the artifact of the given kind.
func (s *artifactStore) SaveArtifact(ctx context.Context, productID string, kind domain.ArtifactKind, payload []byte) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO artifacts (product_id, kind, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(product_id, kind) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, productID, string(kind), payload, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("saving %s artifact: %w", kind, err)
	}
	return nil
}

// GetArtifact retrieves the latest artifact of the given kind.
func (s *artifactStore) GetArtifact(ctx context.Context, productID string, kind domain.ArtifactKind) ([]byte, error) {
	var payload []byte
	err := s.store.db.QueryRowContext(ctx,
		"SELECT payload FROM artifacts WHERE product_id = ? AND kind = ?", productID, string(kind)).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("reading %s artifact: %w", kind, err)
	}
	return payload, nil
}

// ==================== Helper Functions ====================

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.GenerationJob, error) {
	var payload string
	var version int64
	if err := row.Scan(&payload, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	var job domain.GenerationJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("unmarshalling job: %w", err)
	}
	job.Version = version
	return &job, nil
}

func scanChunk(row scanner) (*domain.Chunk, error) {
	var c domain.Chunk
	var kind string
	var embedding []byte
	if err := row.Scan(&c.ID, &c.ProductID, &kind, &c.SourceFile, &c.Page,
		&c.Heading, &c.Text, &c.Role, &embedding); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	c.Kind = domain.SourceKind(kind)
	c.Embedding = bytesToFloat32Slice(embedding)
	return &c, nil
}

// isUniqueViolation reports whether err is a primary key or unique constraint failure.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
