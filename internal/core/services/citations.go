package services

import (
	"regexp"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/logger"
)

const excerptChars = 200

// inlineCitation matches a bracketed chunk id embedded in model prose.
// Chunk ids always start with their source kind, see domain.ChunkID.
var inlineCitation = regexp.MustCompile(`\[((?:pdf|url)-[^\]]+)\]`)

// scrubCitation also consumes one leading space so removal leaves clean prose.
var scrubCitation = regexp.MustCompile(` ?\[((?:pdf|url)-[^\]]+)\]`)

// InlineCitations returns the chunk ids cited inline in text, in order.
func InlineCitations(text string) []string {
	matches := inlineCitation.FindAllStringSubmatch(text, -1)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}

// CitationResolver turns chunk ids into evidence records using the
// metadata of the retrieval context a prompt was built from.
// Ids outside that context are never resolved.
type CitationResolver struct {
	rc *RetrievalContext
}

// NewCitationResolver creates a resolver bound to one retrieval context.
func NewCitationResolver(rc *RetrievalContext) *CitationResolver {
	if rc == nil {
		rc = newRetrievalContext()
	}
	return &CitationResolver{rc: rc}
}

// Collect unions the explicit ids with the inline citations of texts,
// dropping duplicates and keeping first-seen order.
func (r *CitationResolver) Collect(explicit []string, texts ...string) []string {
	ids := append([]string(nil), explicit...)
	for _, t := range texts {
		ids = append(ids, InlineCitations(t)...)
	}
	return domain.UniqueStrings(ids)
}

// Resolve returns one evidence record per known chunk id.
// Unknown ids are logged and dropped.
func (r *CitationResolver) Resolve(ids []string) []domain.Evidence {
	out := make([]domain.Evidence, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		meta, ok := r.rc.Metadata[id]
		if !ok {
			logger.Debug("Dropping citation outside retrieval context: %s", id)
			continue
		}
		pages := []int{}
		if meta.Page > 0 {
			pages = append(pages, meta.Page)
		}
		out = append(out, domain.Evidence{
			ChunkIDs:        []string{id},
			SourceFile:      meta.SourceFile,
			PageNumbers:     pages,
			VerbatimExcerpt: truncateRunes(r.rc.Texts[id], excerptChars),
		})
	}
	return out
}

// Scrub removes inline citation tokens whose chunk id is not in the context.
func (r *CitationResolver) Scrub(text string) string {
	return scrubCitation.ReplaceAllStringFunc(text, func(m string) string {
		id := scrubCitation.FindStringSubmatch(m)[1]
		if r.rc.Contains(id) {
			return m
		}
		logger.Debug("Removing dangling inline citation: %s", id)
		return ""
	})
}

// ResolveText scrubs text and resolves its citations together with explicit ids.
func (r *CitationResolver) ResolveText(explicit []string, text string) (string, []domain.Evidence) {
	clean := r.Scrub(text)
	return clean, r.Resolve(r.Collect(explicit, clean))
}
