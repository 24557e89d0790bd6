package normalisers

import (
	"strings"

	"github.com/custodia-labs/pda/internal/core/domain"
)

// PageBreak separates pages in extracted document text.
const PageBreak = "\f"

// SplitPages splits text on form feeds into 1-based pages. Blank pages
// keep their number so later page references stay aligned with the source.
func SplitPages(text string) []domain.Page {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, PageBreak)
	pages := make([]domain.Page, len(parts))
	for i, p := range parts {
		pages[i] = domain.Page{Number: i + 1, Text: strings.TrimSpace(p)}
	}
	return pages
}

// HasExt reports whether path has one of exts (case-insensitive, with dot).
func HasExt(path string, exts ...string) bool {
	lower := strings.ToLower(path)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
