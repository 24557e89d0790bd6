package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTree_StripsCodeFence(t *testing.T) {
	tree, err := decodeTree("```json\n{\"a\": 1}\n```")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, tree)

	tree, err = decodeTree("```\n[1, 2]\n```  ")
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), float64(2)}, tree)
}

func TestDecodeTree_Invalid(t *testing.T) {
	_, err := decodeTree("{not json")
	assert.Error(t, err)
}

func TestAccessors(t *testing.T) {
	tree, err := decodeTree(`{
		"name": "FlowSense",
		"count": 3,
		"ratio": 0.5,
		"flag": true,
		"null_field": null,
		"tags": ["a", "", 2, {"x": 1}, "b"],
		"items": [{"k": "v"}, "skip", {"k": "w"}],
		"nested": {"k": "v"}
	}`)
	require.NoError(t, err)
	m := asObject(tree)
	require.NotNil(t, m)

	assert.Equal(t, "FlowSense", str(m, "name"))
	assert.Equal(t, "3", str(m, "count"))
	assert.Equal(t, "0.5", str(m, "ratio"))
	assert.Equal(t, "", str(m, "nested"))
	assert.Equal(t, "fallback", strOr(m, "null_field", "fallback"))
	assert.Equal(t, "fallback", strOr(m, "missing", "fallback"))
	assert.True(t, boolOr(m, "flag", false))
	assert.True(t, boolOr(m, "missing", true))
	assert.Equal(t, []string{"a", "2", "b"}, strList(m, "tags"))
	assert.Equal(t, []string{}, strList(m, "missing"))
	assert.Len(t, objects(m["items"]), 2)
	assert.Nil(t, asArray(m["nested"]))
	assert.Nil(t, asObject(m["tags"]))
}
