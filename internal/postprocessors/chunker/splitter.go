// Package chunker splits source pages into overlapping, deterministically
// identified chunks.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 500

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 80

// DefaultSeparators are tried in order, coarsest first.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// maxHeadingRunes bounds the length of a line treated as a heading.
const maxHeadingRunes = 80

// Ensure Splitter implements the interface.
var _ driven.Chunker = (*Splitter)(nil)

// Splitter is a recursive character splitter. Text is cut at the coarsest
// separator that yields pieces under the chunk size, and adjacent pieces
// are merged back up to that size with a trailing overlap.
// Lengths are counted in runes.
type Splitter struct {
	name       string
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator list. The empty separator is
// always appended so any text can be split.
func WithSeparators(seps ...string) Option {
	return func(s *Splitter) {
		if len(seps) == 0 {
			return
		}
		out := make([]string, 0, len(seps)+1)
		for _, sep := range seps {
			if sep != "" {
				out = append(out, sep)
			}
		}
		s.separators = append(out, "")
	}
}

// WithName overrides the reported chunker name.
func WithName(name string) Option {
	return func(s *Splitter) {
		if name != "" {
			s.name = name
		}
	}
}

// New creates a new splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		name:       "recursive",
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Ensure overlap doesn't exceed chunk size
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}

	return s
}

// Name returns the chunker name.
func (s *Splitter) Name() string {
	return s.name
}

// Chunk splits pages into chunks. Ids are numbered per page, so the same
// page text always yields the same ids. Blank pages produce nothing.
func (s *Splitter) Chunk(productID string, kind domain.SourceKind, source string, pages []domain.Page) []domain.Chunk {
	var chunks []domain.Chunk
	heading := ""

	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		heads := findHeadings(page.Text)
		searchFrom := 0

		for i, text := range s.Split(page.Text) {
			offset := searchFrom
			if at := strings.Index(page.Text[searchFrom:], text); at >= 0 {
				offset = searchFrom + at
				searchFrom = offset + 1
			}
			for len(heads) > 0 && heads[0].offset <= offset {
				heading = heads[0].text
				heads = heads[1:]
			}

			chunks = append(chunks, domain.Chunk{
				ID:         domain.ChunkID(kind, source, page.Number, i),
				ProductID:  productID,
				Kind:       kind,
				SourceFile: source,
				Page:       page.Number,
				Heading:    heading,
				Text:       text,
			})
		}
		// Headings after the last chunk start still carry to the next page.
		if len(heads) > 0 {
			heading = heads[len(heads)-1].text
		}
	}

	return chunks
}

// Split returns the trimmed, non-empty chunks of text.
func (s *Splitter) Split(text string) []string {
	var out []string
	for _, c := range s.split(text, s.separators) {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := ""
	var rest []string
	for i, candidate := range separators {
		if candidate == "" {
			sep = ""
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		pieces = strings.Split(text, "")
	} else {
		pieces = strings.SplitAfter(text, sep)
	}

	var final, good []string
	for _, p := range pieces {
		if runeLen(p) < s.chunkSize {
			good = append(good, p)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, p)
		} else {
			final = append(final, s.split(p, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good)...)
	}
	return final
}

// merge joins pieces up to the chunk size. When a chunk is emitted, pieces
// are dropped from its front until at most overlap characters remain to
// start the next one.
func (s *Splitter) merge(pieces []string) []string {
	var out, current []string
	total := 0

	for _, p := range pieces {
		n := runeLen(p)
		if total+n > s.chunkSize && len(current) > 0 {
			out = append(out, strings.Join(current, ""))
			for total > s.overlap || (total+n > s.chunkSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, ""))
	}
	return out
}

type headingLine struct {
	offset int
	text   string
}

func findHeadings(text string) []headingLine {
	var out []headingLine
	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		if h := strings.TrimSpace(line); isHeading(h) {
			out = append(out, headingLine{offset: offset + strings.Index(line, h), text: h})
		}
		offset += len(line)
	}
	return out
}

// isHeading reports whether line looks like a section heading: short,
// starting with a capital letter and not ending like a sentence.
func isHeading(line string) bool {
	n := runeLen(line)
	if n < 2 || n > maxHeadingRunes {
		return false
	}
	first, _ := utf8.DecodeRuneInString(line)
	if !unicode.IsUpper(first) {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(line)
	if strings.ContainsRune(".,;!?", last) {
		return false
	}
	return len(strings.Fields(line)) <= 10
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
