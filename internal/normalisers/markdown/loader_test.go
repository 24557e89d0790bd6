package markdown

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
	assert.True(t, l.Supports("README.md"))
	assert.True(t, l.Supports("guide.markdown"))
	assert.False(t, l.Supports("guide.txt"))
}

func TestStrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"heading", "## Specifications", "Specifications"},
		{"link", "See [the manual](http://x/y.pdf) now", "See the manual now"},
		{"image", "![Pump diagram](pump.png)", "Pump diagram"},
		{"bold", "Rated **IP68** enclosure", "Rated IP68 enclosure"},
		{"emphasis", "a *very* quiet pump", "a very quiet pump"},
		{"snake_case kept", "set max_flow_rate to 40", "set max_flow_rate to 40"},
		{"list", "- first\n- second", "first\nsecond"},
		{"quote", "> quoted", "quoted"},
		{"inline code", "run `pumpctl start`", "run pumpctl start"},
		{"table", "| Spec | Value |\n|---|---|\n| Flow | 40 |", "Spec Value\nFlow 40"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Strip(tt.in))
		})
	}
}

func TestStrip_KeepsCodeBlockContent(t *testing.T) {
	out := Strip("```\nvoltage: 24V\n```")
	assert.Equal(t, "voltage: 24V", out)
}

func TestLoader_Load_SplitsPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# One\nfirst\f# Two\nsecond"), 0600))

	pages, err := New().Load(context.Background(), path)

	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "One\nfirst", pages[0].Text)
	assert.Equal(t, 2, pages[1].Number)
	assert.Equal(t, "Two\nsecond", pages[1].Text)
}
