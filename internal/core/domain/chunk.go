package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SourceKind identifies where a chunk's text came from.
type SourceKind string

// Supported source kinds. The kind is the prefix of every chunk id,
// which is what inline citation markers ([pdf-...], [url-...]) match on.
const (
	SourceKindPDF SourceKind = "pdf"
	SourceKindURL SourceKind = "url"
)

// IsValid returns true if the source kind is recognised.
func (k SourceKind) IsValid() bool {
	return k == SourceKindPDF || k == SourceKindURL
}

// Page is one ordered unit of extracted source text.
// For documents Number is the 1-based page; for URLs it is the section index.
type Page struct {
	Number int
	Text   string
}

// Chunk is the immutable grounding unit used for retrieval and citations.
type Chunk struct {
	// ID is deterministic in (source, position); see ChunkID.
	ID string `json:"chunk_id"`

	// ProductID scopes the chunk to one product's corpus.
	ProductID string `json:"product_id"`

	// Kind is the source type (pdf or url).
	Kind SourceKind `json:"source_type"`

	// SourceFile is the file name or URL the text came from.
	SourceFile string `json:"source_file"`

	// Page is the page number for documents, or the section index for URLs.
	Page int `json:"page"`

	// Heading is the detected section heading above the chunk, if any.
	Heading string `json:"heading,omitempty"`

	// Text is the chunk content.
	Text string `json:"text"`

	// Role is an optional content-role tag assigned by a classifier upstream.
	Role string `json:"role,omitempty"`

	// Embedding is the vector representation, nil when no embedding provider is configured.
	Embedding []float32 `json:"-"`
}

// ChunkMetadata is the citation metadata exposed for a retrieved chunk.
type ChunkMetadata struct {
	SourceFile string `json:"source_file"`
	Page       int    `json:"page"`
	Heading    string `json:"heading,omitempty"`
}

// Metadata returns the citation metadata for the chunk.
func (c *Chunk) Metadata() ChunkMetadata {
	return ChunkMetadata{SourceFile: c.SourceFile, Page: c.Page, Heading: c.Heading}
}

// RetrievedChunk is one result of a retrieval query.
type RetrievedChunk struct {
	ChunkID  string        `json:"chunk_id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
}

// SourceDigest returns the short stable digest of a source name used in chunk ids.
func SourceDigest(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])[:6]
}

// ChunkID builds the deterministic id for the index-th chunk of a page.
// Documents produce pdf-<digest>-p<page>-c<i>, URLs url-<digest>-s<section>-c<i>.
func ChunkID(kind SourceKind, source string, page, index int) string {
	if kind == SourceKindURL {
		return fmt.Sprintf("url-%s-s%d-c%d", SourceDigest(source), page, index)
	}
	return fmt.Sprintf("pdf-%s-p%d-c%d", SourceDigest(source), page, index)
}
