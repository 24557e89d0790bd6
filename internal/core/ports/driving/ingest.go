package driving

import "context"

// IngestRequest names the sources to index for a product.
type IngestRequest struct {
	ProductID string

	// Files are document sources, chunked as pdf-* ids.
	Files []string

	// URLFiles are text dumps of product web pages, chunked as url-* ids.
	URLFiles []string
}

// IngestResult summarises one ingest run.
type IngestResult struct {
	Chunks   int
	Embedded int
	Skipped  []string
}

// IngestService loads, chunks, embeds and stores product sources.
type IngestService interface {
	Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error)
}
