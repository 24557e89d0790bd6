// Package markdown loads Markdown product documents as plain text.
package markdown

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
	"github.com/custodia-labs/pda/internal/normalisers"
)

// Ensure Loader implements the interface.
var _ driven.SourceLoader = (*Loader)(nil)

// Loader reads Markdown files. Formatting is stripped but heading text
// is kept on its own line so chunk headings can still be detected.
type Loader struct{}

// New creates a new Markdown loader.
func New() *Loader {
	return &Loader{}
}

// Priority returns the selection priority.
func (l *Loader) Priority() int {
	return 50
}

// Supports reports whether path is a Markdown file.
func (l *Loader) Supports(path string) bool {
	return normalisers.HasExt(path, ".md", ".markdown")
}

// Load reads the file, strips formatting and splits it into pages.
func (l *Loader) Load(ctx context.Context, path string) ([]domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	pages := normalisers.SplitPages(string(data))
	for i := range pages {
		pages[i].Text = Strip(pages[i].Text)
	}
	return pages, nil
}

var (
	codeFence     = regexp.MustCompile("(?m)^```.*$")
	inlineCode    = regexp.MustCompile("`([^`]+)`")
	images        = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	links         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headings      = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	strong        = regexp.MustCompile(`(\*\*|__)(.+?)(\*\*|__)`)
	emphasis      = regexp.MustCompile(`(^|\s)[*_]([^*_\s][^*_]*?)[*_]`)
	blockquote    = regexp.MustCompile(`(?m)^>[ \t]?`)
	hr            = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
	listMarkers   = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`)
	tableRule     = regexp.MustCompile(`(?m)^[ \t]*\|?[ \t]*:?-{3,}[^\n]*\n?`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// Strip removes common Markdown syntax. Code block contents, link text
// and numbered-list numbers are kept because spec tables often use them.
func Strip(content string) string {
	content = codeFence.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = images.ReplaceAllString(content, "$1")
	content = links.ReplaceAllString(content, "$1")
	content = headings.ReplaceAllString(content, "")
	content = strong.ReplaceAllString(content, "$2")
	content = emphasis.ReplaceAllString(content, "$1$2")
	content = blockquote.ReplaceAllString(content, "")
	content = tableRule.ReplaceAllString(content, "")
	content = hr.ReplaceAllString(content, "")
	content = listMarkers.ReplaceAllString(content, "")
	content = strings.ReplaceAll(content, "|", " ")
	content = multiNewlines.ReplaceAllString(content, "\n\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(multiNewlines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
