package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_FlattensSeed(t *testing.T) {
	store := NewConfigStore(map[string]any{
		"llm": map[string]any{
			"provider":        "openai",
			"timeout_seconds": int64(60),
		},
		"server.addr": "127.0.0.1:9000",
	})

	assert.Equal(t, "openai", store.GetString("llm.provider"))
	assert.Equal(t, 60, store.GetInt("llm.timeout_seconds"))
	assert.Equal(t, "127.0.0.1:9000", store.GetString("server.addr"))
	assert.Equal(t, []string{"llm.provider", "llm.timeout_seconds", "server.addr"}, store.Keys())
}

func TestNewConfigStore_NilSeed(t *testing.T) {
	store := NewConfigStore(nil)

	_, ok := store.Get("llm.provider")
	assert.False(t, ok)
	assert.Empty(t, store.Keys())
}

func TestConfigStore_SetAndUpdate(t *testing.T) {
	store := NewConfigStore(nil)

	require.NoError(t, store.Set("pipeline.chunker", "recursive"))
	require.NoError(t, store.Set("pipeline.chunker", "fixed"))

	val, ok := store.Get("pipeline.chunker")
	assert.True(t, ok)
	assert.Equal(t, "fixed", val)
}

func TestConfigStore_SetNestedMap(t *testing.T) {
	store := NewConfigStore(nil)

	require.NoError(t, store.Set("embedding", map[string]any{"provider": "gemini"}))

	assert.Equal(t, "gemini", store.GetString("embedding.provider"))
}

func TestConfigStore_GetString_Coerces(t *testing.T) {
	store := NewConfigStore(map[string]any{
		"a": 42, "b": int64(7), "c": 1.5, "d": true, "e": []string{"x"},
	})

	assert.Equal(t, "42", store.GetString("a"))
	assert.Equal(t, "7", store.GetString("b"))
	assert.Equal(t, "1.5", store.GetString("c"))
	assert.Equal(t, "true", store.GetString("d"))
	assert.Equal(t, "", store.GetString("e"))
	assert.Equal(t, "", store.GetString("missing"))
}

func TestConfigStore_GetInt_Coerces(t *testing.T) {
	store := NewConfigStore(map[string]any{
		"int": 3, "int64": int64(4), "float": 5.9, "str": " 24000 ", "bad": "many", "bool": true,
	})

	assert.Equal(t, 3, store.GetInt("int"))
	assert.Equal(t, 4, store.GetInt("int64"))
	assert.Equal(t, 5, store.GetInt("float"))
	assert.Equal(t, 24000, store.GetInt("str"))
	assert.Equal(t, 0, store.GetInt("bad"))
	assert.Equal(t, 0, store.GetInt("bool"))
	assert.Equal(t, 0, store.GetInt("missing"))
}

func TestConfigStore_GetBool_Coerces(t *testing.T) {
	store := NewConfigStore(map[string]any{"a": true, "b": "TRUE", "c": "nope", "d": 1})

	assert.True(t, store.GetBool("a"))
	assert.True(t, store.GetBool("b"))
	assert.False(t, store.GetBool("c"))
	assert.False(t, store.GetBool("d"))
	assert.False(t, store.GetBool("missing"))
}

func TestConfigStore_GetStringSlice(t *testing.T) {
	store := NewConfigStore(map[string]any{
		"strings": []string{"a", "b"},
		"any":     []any{"c", 1, "d"},
		"csv":     "e, f,,g",
		"int":     9,
	})

	assert.Equal(t, []string{"a", "b"}, store.GetStringSlice("strings"))
	assert.Equal(t, []string{"c", "d"}, store.GetStringSlice("any"))
	assert.Equal(t, []string{"e", "f", "g"}, store.GetStringSlice("csv"))
	assert.Nil(t, store.GetStringSlice("int"))
	assert.Nil(t, store.GetStringSlice("missing"))
}

func TestConfigStore_GetStringSlice_ReturnsCopy(t *testing.T) {
	store := NewConfigStore(map[string]any{"s": []string{"a"}})

	got := store.GetStringSlice("s")
	got[0] = "changed"

	assert.Equal(t, []string{"a"}, store.GetStringSlice("s"))
}

func TestConfigStore_NoPersistence(t *testing.T) {
	store := NewConfigStore(nil)

	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_ConcurrentAccess(t *testing.T) {
	store := NewConfigStore(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Set("llm.model", "m")
		}()
		go func() {
			defer wg.Done()
			_ = store.GetString("llm.model")
		}()
	}
	wg.Wait()

	assert.Equal(t, "m", store.GetString("llm.model"))
}
