package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/libris/internal/core/ports/driven"
)

func TestConfigStore_InterfaceCompliance(t *testing.T) {
	var _ driven.ConfigStore = NewConfigStore()
}

func TestConfigStore_SetAndGet(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("embedding.model", "embedding-3"))
	require.NoError(t, store.Set("embedding.model", "embedding-2"))

	val, ok := store.Get("embedding.model")
	assert.True(t, ok)
	assert.Equal(t, "embedding-2", val)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("chunking.size", 1000)
	_ = store.Set("chunking.size64", int64(800))
	_ = store.Set("retrieval.top_k", float64(7))
	_ = store.Set("generation.temperature", 0.3)
	_ = store.Set("chunking.keywords", true)
	_ = store.Set("pipeline.processors", []any{"chunker", 3, "keywords"})

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"int", store.GetInt("chunking.size"), 1000},
		{"int from int64", store.GetInt("chunking.size64"), 800},
		{"int from float", store.GetInt("retrieval.top_k"), 7},
		{"int wrong type", store.GetInt("chunking.keywords"), 0},
		{"float", store.GetFloat("generation.temperature"), 0.3},
		{"float from int", store.GetFloat("chunking.size"), 1000.0},
		{"float missing", store.GetFloat("missing"), 0.0},
		{"bool", store.GetBool("chunking.keywords"), true},
		{"bool wrong type", store.GetBool("chunking.size"), false},
		{"string wrong type", store.GetString("chunking.size"), ""},
		{"slice skips non-strings", store.GetStringSlice("pipeline.processors"), []string{"chunker", "keywords"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestConfigStore_All(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("embedding.model", "embedding-3")
	_ = store.Set("embedding.dimensions", 2048)
	_ = store.Set("retrieval.top_k", 5)
	_ = store.Set("flat", "x")

	tree := store.All()

	assert.Equal(t, "x", tree["flat"])
	embedding, ok := tree["embedding"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "embedding-3", embedding["model"])
	assert.Equal(t, 2048, embedding["dimensions"])
	retrieval, ok := tree["retrieval"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 5, retrieval["top_k"])
}

func TestConfigStore_NoOpPersistence(t *testing.T) {
	store := NewConfigStore()
	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = store.Set(fmt.Sprintf("key.%d", i), i)
		}(i)
		go func(i int) {
			defer wg.Done()
			_ = store.GetInt(fmt.Sprintf("key.%d", i))
			_ = store.All()
		}(i)
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		assert.Equal(t, i, store.GetInt(fmt.Sprintf("key.%d", i)))
	}
}
