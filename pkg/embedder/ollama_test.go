package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler func(req ollamaEmbedRequest) ollamaEmbedResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)

		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(handler(req)))
	}))
}

func identityVectors(req ollamaEmbedRequest) ollamaEmbedResponse {
	vectors := make([][]float32, len(req.Input))
	for i := range req.Input {
		vectors[i] = []float32{float32(len(req.Input[i])), 1, 2}
	}
	return ollamaEmbedResponse{Embeddings: vectors}
}

func TestEmbedSingleText(t *testing.T) {
	srv := newTestServer(t, identityVectors)
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Model: "test-model"})
	vector, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, []float32{5, 1, 2}, vector)
	assert.Equal(t, 3, e.Dimension())
	assert.Equal(t, "test-model", e.Model())
}

func TestEmbedBatchSplitsLargeInputs(t *testing.T) {
	var batchSizes []int
	srv := newTestServer(t, func(req ollamaEmbedRequest) ollamaEmbedResponse {
		batchSizes = append(batchSizes, len(req.Input))
		return identityVectors(req)
	})
	defer srv.Close()

	texts := make([]string, 70)
	for i := range texts {
		texts[i] = "text"
	}

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL})
	vectors, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)

	assert.Len(t, vectors, 70)
	assert.Equal(t, []int{32, 32, 6}, batchSizes)
}

func TestEmbedBatchEmpty(t *testing.T) {
	e := NewOllamaEmbedder(OllamaConfig{Host: "http://localhost:1"})
	vectors, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEmbedModelError(t *testing.T) {
	srv := newTestServer(t, func(req ollamaEmbedRequest) ollamaEmbedResponse {
		return ollamaEmbedResponse{Error: "model not found"}
	})
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL})
	_, err := e.Embed(context.Background(), "hello")
	assert.ErrorContains(t, err, "model not found")
}

func TestReloadResetsDimension(t *testing.T) {
	srv := newTestServer(t, identityVectors)
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Model: "first"})
	_, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, 3, e.Dimension())

	e.Reload("second")
	assert.Equal(t, "second", e.Model())
	assert.Equal(t, 0, e.Dimension())
}

func TestConfigDefaults(t *testing.T) {
	cfg := OllamaConfig{}
	cfg.SetDefaults()
	assert.Equal(t, "http://localhost:11434", cfg.Host)
	assert.Equal(t, "nomic-embed-text", cfg.Model)
	assert.Equal(t, 30, cfg.Timeout)
}
