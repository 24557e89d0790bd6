package html

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Supports(t *testing.T) {
	l := New()
	assert.True(t, l.Supports("page.html"))
	assert.True(t, l.Supports("PAGE.HTM"))
	assert.False(t, l.Supports("notes.md"))
}

func TestStrip_RemovesNonContent(t *testing.T) {
	in := `<html><head><title>x</title><style>p{}</style></head>
<body><script>alert(1)</script><!-- hidden --><p>Flow&nbsp;rate &amp; pressure</p>
<svg><path/></svg><ul><li>One</li><li>Two</li></ul></body></html>`

	out := Strip(in)

	assert.NotContains(t, out, "alert")
	assert.NotContains(t, out, "hidden")
	assert.NotContains(t, out, "p{}")
	assert.Contains(t, out, "Flow rate & pressure")
	assert.Contains(t, out, "One\n")
	assert.Contains(t, out, "Two")
}

func TestSections_SplitsAtTopHeadings(t *testing.T) {
	in := `<p>Intro text</p>
<h1>Overview</h1><p>The pump moves water.</p>
<h3>Detail</h3><p>Still overview.</p>
<h2 class="x">Specifications</h2><p>Max flow 40 L/min</p>`

	pages := Sections(in)

	require.Len(t, pages, 3)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "Intro text", pages[0].Text)
	assert.Contains(t, pages[1].Text, "Overview")
	assert.Contains(t, pages[1].Text, "Still overview.")
	assert.Equal(t, 3, pages[2].Number)
	assert.Contains(t, pages[2].Text, "Max flow 40 L/min")
}

func TestSections_SkipsBlankLeadingSection(t *testing.T) {
	pages := Sections("<div> </div><h2>Only</h2><p>body</p>")

	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
}

func TestLoader_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte("<h1>A</h1><p>a</p><h1>B</h1><p>b</p>"), 0600))

	pages, err := New().Load(context.Background(), path)

	require.NoError(t, err)
	assert.Len(t, pages, 2)
}

func TestLoader_Load_MissingFile(t *testing.T) {
	_, err := New().Load(context.Background(), filepath.Join(t.TempDir(), "nope.html"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
