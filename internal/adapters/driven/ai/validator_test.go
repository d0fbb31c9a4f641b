package ai

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
)

func TestConfigValidator(t *testing.T) {
	var _ driven.AIConfigValidator = NewConfigValidator()
	v := NewConfigValidator()

	t.Run("nil and unconfigured are accepted", func(t *testing.T) {
		assert.NoError(t, v.ValidateEmbedding(nil))
		assert.NoError(t, v.ValidateLLM(nil))
		assert.NoError(t, v.ValidateEmbedding(&domain.EmbeddingSettings{Provider: "", Model: "m"}))
		assert.NoError(t, v.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderOpenAI}))
	})

	t.Run("local embedding needs no network", func(t *testing.T) {
		assert.NoError(t, v.ValidateEmbedding(&domain.EmbeddingSettings{
			Provider:   domain.AIProviderLocal,
			Dimensions: 64,
		}))
	})

	t.Run("reachable ollama", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"models":[]}`))
		}))
		defer srv.Close()

		assert.NoError(t, v.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL}))
	})

	t.Run("unreachable ollama", func(t *testing.T) {
		assert.Error(t, v.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: "http://127.0.0.1:1"}))
	})
}
