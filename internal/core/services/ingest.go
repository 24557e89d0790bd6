package services

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
	"github.com/custodia-labs/pda/internal/core/ports/driving"
	"github.com/custodia-labs/pda/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// Embedding fan-out during ingest.
const (
	embedBatchSize   = 64
	embedConcurrency = 4
)

// IngestService loads, chunks, embeds and stores product sources.
type IngestService struct {
	loaders  []driven.SourceLoader
	chunker  driven.Chunker
	chunks   driven.ChunkStore
	embedder driven.EmbeddingService
}

// NewIngestService creates an ingest service.
// The embedder parameter is optional (can be nil); chunks are then stored
// without vectors and retrieval uses keyword scoring.
func NewIngestService(
	loaders []driven.SourceLoader,
	chunker driven.Chunker,
	chunks driven.ChunkStore,
	embedder driven.EmbeddingService,
) *IngestService {
	return &IngestService{
		loaders:  loaders,
		chunker:  chunker,
		chunks:   chunks,
		embedder: embedder,
	}
}

// Ingest prepares and indexes every source in req.
func (s *IngestService) Ingest(ctx context.Context, req driving.IngestRequest) (*driving.IngestResult, error) {
	chunks, skipped, err := s.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	embedded, err := s.Index(ctx, chunks)
	if err != nil {
		return nil, err
	}
	return &driving.IngestResult{Chunks: len(chunks), Embedded: embedded, Skipped: skipped}, nil
}

// Prepare loads and chunks every source. Sources that cannot be read are
// logged and reported as skipped; ErrNoSourceText is returned only when
// nothing at all could be chunked.
func (s *IngestService) Prepare(
	ctx context.Context, req driving.IngestRequest,
) ([]domain.Chunk, []string, error) {
	if req.ProductID == "" {
		return nil, nil, &domain.ValidationError{Field: "product_id", Reason: "must not be empty"}
	}

	var chunks []domain.Chunk
	skipped := []string{}

	load := func(path string, kind domain.SourceKind) {
		pages, err := s.load(ctx, path)
		if err != nil {
			logger.Warn("Skipping source %s: %v", path, err)
			skipped = append(skipped, path)
			return
		}
		got := s.chunker.Chunk(req.ProductID, kind, filepath.Base(path), pages)
		logger.Debug("Chunked %s into %d chunk(s)", path, len(got))
		chunks = append(chunks, got...)
	}

	for _, path := range req.Files {
		load(path, domain.SourceKindPDF)
	}
	for _, path := range req.URLFiles {
		load(path, domain.SourceKindURL)
	}

	if len(chunks) == 0 {
		return nil, skipped, domain.ErrNoSourceText
	}
	return chunks, skipped, nil
}

func (s *IngestService) load(ctx context.Context, path string) ([]domain.Page, error) {
	for _, l := range s.loaders {
		if l.Supports(path) {
			return l.Load(ctx, path)
		}
	}
	return nil, fmt.Errorf("%w: no loader for %s", domain.ErrInvalidInput, filepath.Ext(path))
}

type sourceRef struct {
	productID string
	kind      domain.SourceKind
	source    string
}

// dropStale removes what earlier ingests stored for the sources in chunks,
// so a source that now chunks shorter leaves no orphaned tail behind.
func (s *IngestService) dropStale(ctx context.Context, chunks []domain.Chunk) error {
	seen := make(map[sourceRef]struct{})
	for _, c := range chunks {
		ref := sourceRef{c.ProductID, c.Kind, c.SourceFile}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		if err := s.chunks.DeleteSourceChunks(ctx, ref.productID, ref.kind, ref.source); err != nil {
			return fmt.Errorf("replace chunks of %s: %w", ref.source, err)
		}
	}
	return nil
}

// Index embeds chunks (when an embedder is configured) and upserts them.
// Embedding batches run concurrently; any batch failure aborts the index.
func (s *IngestService) Index(ctx context.Context, chunks []domain.Chunk) (int, error) {
	embedded := 0
	if s.embedder != nil {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(embedConcurrency)

		for start := 0; start < len(chunks); start += embedBatchSize {
			end := min(start+embedBatchSize, len(chunks))
			batch := chunks[start:end]
			g.Go(func() error {
				texts := make([]string, len(batch))
				for i := range batch {
					texts[i] = batch[i].Text
				}
				vecs, err := s.embedder.EmbedBatch(gctx, texts)
				if err != nil {
					return fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
				}
				if len(vecs) != len(batch) {
					return fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end, len(vecs))
				}
				for i := range batch {
					batch[i].Embedding = vecs[i]
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
		embedded = len(chunks)
	}

	if err := s.dropStale(ctx, chunks); err != nil {
		return 0, err
	}
	if err := s.chunks.SaveChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("save chunks: %w", err)
	}
	logger.Info("Indexed %d chunk(s), %d embedded", len(chunks), embedded)
	return embedded, nil
}
