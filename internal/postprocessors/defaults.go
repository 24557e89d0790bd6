package postprocessors

import (
	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
	"github.com/custodia-labs/pda/internal/postprocessors/chunker"
)

// RegisterDefaults registers the built-in chunkers with the registry.
func RegisterDefaults(r *Registry) {
	r.Register("recursive", buildRecursive)
	r.Register("fixed", buildFixed)
}

// ChunkerConfig converts pipeline settings into builder config.
func ChunkerConfig(p domain.PipelineSettings) map[string]any {
	return map[string]any{
		"chunk_size": p.ChunkSize,
		"overlap":    p.ChunkOverlap,
	}
}

// buildRecursive creates the paragraph/line/sentence/word splitter.
// Supported config keys:
//   - chunk_size (int): Characters per chunk (default: 500)
//   - overlap (int): Overlapping characters between chunks (default: 80)
func buildRecursive(cfg map[string]any) (driven.Chunker, error) {
	return chunker.New(sizeOptions(cfg)...), nil
}

// buildFixed creates a splitter that cuts at exact character counts,
// ignoring text structure.
func buildFixed(cfg map[string]any) (driven.Chunker, error) {
	opts := append(sizeOptions(cfg), chunker.WithSeparators(""), chunker.WithName("fixed"))
	return chunker.New(opts...), nil
}

func sizeOptions(cfg map[string]any) []chunker.Option {
	var opts []chunker.Option
	if size, ok := getIntFromConfig(cfg, "chunk_size"); ok && size > 0 {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if overlap, ok := getIntFromConfig(cfg, "overlap"); ok && overlap >= 0 {
		opts = append(opts, chunker.WithOverlap(overlap))
	}
	return opts
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
