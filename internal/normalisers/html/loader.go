// Package html loads saved HTML product pages as plain text.
package html

import (
	"context"
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
	"github.com/custodia-labs/pda/internal/normalisers"
)

// Ensure Loader implements the interface.
var _ driven.SourceLoader = (*Loader)(nil)

// Loader reads HTML files. Each top-level section (starting at an h1 or
// h2) becomes one page so citations can point at a part of the page.
type Loader struct{}

// New creates a new HTML loader.
func New() *Loader {
	return &Loader{}
}

// Priority returns the selection priority.
func (l *Loader) Priority() int {
	return 50
}

// Supports reports whether path is an HTML file.
func (l *Loader) Supports(path string) bool {
	return normalisers.HasExt(path, ".html", ".htm")
}

// Load reads the file, strips markup and splits it into sections.
func (l *Loader) Load(ctx context.Context, path string) ([]domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Sections(string(data)), nil
}

var (
	scriptRegex    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRegex     = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	headRegex      = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgRegex       = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	noscriptRegex  = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	commentRegex   = regexp.MustCompile(`(?s)<!--.*?-->`)
	sectionStart   = regexp.MustCompile(`(?i)<h[12][\s>]`)
	blockRegex     = regexp.MustCompile(`(?i)</?(p|div|br|hr|h[1-6]|li|tr|td|th|table|ul|ol|section|article|header|footer|nav|main|dl|dt|dd)[^>]*>`)
	tagRegex       = regexp.MustCompile(`<[^>]+>`)
	spacesRegex    = regexp.MustCompile(`[ \t]+`)
	multiNewlines  = regexp.MustCompile(`\n{3,}`)
	leadingSpaceRe = regexp.MustCompile(`(?m)^ +| +$`)
)

// Sections strips content into pages, one per h1/h2 section. Text before
// the first heading forms its own page when it is not blank.
func Sections(content string) []domain.Page {
	content = removeNonContent(content)

	var parts []string
	idx := sectionStart.FindAllStringIndex(content, -1)
	prev := 0
	for _, loc := range idx {
		parts = append(parts, content[prev:loc[0]])
		prev = loc[0]
	}
	parts = append(parts, content[prev:])

	var pages []domain.Page
	for _, part := range parts {
		text := Strip(part)
		if text == "" {
			continue
		}
		pages = append(pages, domain.Page{Number: len(pages) + 1, Text: text})
	}
	return pages
}

// Strip removes markup and returns readable text, keeping block
// boundaries as newlines.
func Strip(content string) string {
	content = removeNonContent(content)
	content = blockRegex.ReplaceAllString(content, "\n")
	content = tagRegex.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = strings.ReplaceAll(content, "\u00a0", " ")
	content = spacesRegex.ReplaceAllString(content, " ")
	content = leadingSpaceRe.ReplaceAllString(content, "")
	content = multiNewlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

func removeNonContent(content string) string {
	content = scriptRegex.ReplaceAllString(content, "")
	content = styleRegex.ReplaceAllString(content, "")
	content = headRegex.ReplaceAllString(content, "")
	content = svgRegex.ReplaceAllString(content, "")
	content = noscriptRegex.ReplaceAllString(content, "")
	return commentRegex.ReplaceAllString(content, "")
}
