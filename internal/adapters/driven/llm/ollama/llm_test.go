package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
)

func TestChat(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"answer"},"done":true}`))
		case "/api/tags":
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	svc := NewLLMService(LLMConfig{BaseURL: srv.URL})
	assert.Equal(t, DefaultLLMModel, svc.ModelName())

	reply, err := svc.Chat(context.Background(), []driven.ChatMessage{
		{Role: "system", Content: "s"},
		{Role: "user", Content: "q"},
	}, driven.ChatOptions{MaxTokens: 10, Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "answer", reply)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	require.NotNil(t, got.Options)
	assert.Equal(t, 10, got.Options.NumPredict)
	require.NotNil(t, got.Options.Temperature)
	assert.InDelta(t, 0.2, *got.Options.Temperature, 1e-9)

	reply, err = svc.Generate(context.Background(), "p", driven.GenerateOptions{StopWords: []string{"\n"}})
	require.NoError(t, err)
	assert.Equal(t, "answer", reply)
	assert.Equal(t, []string{"\n"}, got.Options.Stop)

	assert.NoError(t, svc.Ping(context.Background()))
}

func TestChat_Errors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model missing", http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := NewLLMService(LLMConfig{BaseURL: srv.URL}).Chat(context.Background(), nil, driven.ChatOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model missing")
	})

	t.Run("unreachable", func(t *testing.T) {
		_, err := NewLLMService(LLMConfig{BaseURL: "http://127.0.0.1:1"}).Chat(context.Background(), nil, driven.ChatOptions{})
		assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	})
}
