package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func embeddingOfDim(dim int) []float32 {
	values := make([]float32, dim)
	for i := range values {
		values[i] = float32(i) / float32(dim)
	}

	return values
}

func TestGeminiEmbedder_Embed(t *testing.T) {
	var captured embedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/embedding-001:embedContent", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": embeddingOfDim(EmbeddingDim)},
		})
	}))
	defer server.Close()

	embedder := NewGeminiEmbedder(GeminiEmbedderConfig{APIKey: "k", BaseURL: server.URL}, testLogger())

	vector, err := embedder.Embed(context.Background(), "what is a slice")

	require.NoError(t, err)
	assert.Len(t, vector, EmbeddingDim)

	assert.Equal(t, "models/embedding-001", captured.Model)
	assert.Equal(t, "RETRIEVAL_QUERY", captured.TaskType)
	require.Len(t, captured.Content.Parts, 1)
	assert.Equal(t, "what is a slice", captured.Content.Parts[0].Text)
}

func TestGeminiEmbedder_EmbedDocument(t *testing.T) {
	var captured embedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": embeddingOfDim(EmbeddingDim)},
		})
	}))
	defer server.Close()

	embedder := NewGeminiEmbedder(GeminiEmbedderConfig{APIKey: "k", BaseURL: server.URL}, testLogger())

	_, err := embedder.EmbedDocument(context.Background(), "a chunk of a document")

	require.NoError(t, err)
	assert.Equal(t, "RETRIEVAL_DOCUMENT", captured.TaskType)
}

func TestGeminiEmbedder_EmptyText(t *testing.T) {
	embedder := NewGeminiEmbedder(GeminiEmbedderConfig{APIKey: "k"}, testLogger())

	_, err := embedder.Embed(context.Background(), "")

	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.False(t, IsTransient(err))
}

func TestGeminiEmbedder_TransientStatuses(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "try later", status)
		}))

		embedder := NewGeminiEmbedder(GeminiEmbedderConfig{APIKey: "k", BaseURL: server.URL}, testLogger())

		_, err := embedder.Embed(context.Background(), "text")

		assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
		assert.True(t, IsTransient(err), "status %d should be transient", status)

		server.Close()
	}
}

func TestGeminiEmbedder_PermanentStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad input", http.StatusBadRequest)
	}))
	defer server.Close()

	embedder := NewGeminiEmbedder(GeminiEmbedderConfig{APIKey: "k", BaseURL: server.URL}, testLogger())

	_, err := embedder.Embed(context.Background(), "text")

	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.False(t, IsTransient(err))
}

func TestGeminiEmbedder_TransportErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	embedder := NewGeminiEmbedder(GeminiEmbedderConfig{APIKey: "k", BaseURL: server.URL}, testLogger())

	_, err := embedder.Embed(context.Background(), "text")

	assert.True(t, IsTransient(err))
}

func TestGeminiEmbedder_DimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": embeddingOfDim(12)},
		})
	}))
	defer server.Close()

	embedder := NewGeminiEmbedder(GeminiEmbedderConfig{APIKey: "k", BaseURL: server.URL}, testLogger())

	_, err := embedder.Embed(context.Background(), "text")

	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.False(t, IsTransient(err))
}

func TestTransient(t *testing.T) {
	assert.NoError(t, Transient(nil))

	base := errors.New("timeout")
	wrapped := Transient(base)

	assert.True(t, IsTransient(wrapped))
	assert.ErrorIs(t, wrapped, base)
	assert.False(t, IsTransient(base))
}
