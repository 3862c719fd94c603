package llms

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectChunks(t *testing.T, ch <-chan StreamChunk) (string, []StreamChunk) {
	t.Helper()
	var text string
	var all []StreamChunk
	for chunk := range ch {
		all = append(all, chunk)
		if chunk.Type == "text" {
			text += chunk.Text
		}
	}
	return text, all
}

func TestOllamaStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		fmt.Fprintln(w, `{"response":"Hello","done":false}`)
		fmt.Fprintln(w, `{"response":" world","done":false}`)
		fmt.Fprintln(w, `{"response":"","done":true,"prompt_eval_count":10,"eval_count":2}`)
	}))
	defer server.Close()

	p, err := NewOllamaProvider(Config{Host: server.URL, Model: "test-model"})
	require.NoError(t, err)

	ch, err := p.GenerateStreaming(context.Background(), "prompt", GenerateOptions{MaxTokens: 100})
	require.NoError(t, err)

	text, all := collectChunks(t, ch)
	assert.Equal(t, "Hello world", text)

	last := all[len(all)-1]
	assert.Equal(t, "done", last.Type)
	assert.Equal(t, 12, last.Tokens)
}

func TestOllamaStreamingError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"error":"model not found"}`)
	}))
	defer server.Close()

	p, err := NewOllamaProvider(Config{Host: server.URL, Model: "missing"})
	require.NoError(t, err)

	ch, err := p.GenerateStreaming(context.Background(), "prompt", GenerateOptions{})
	require.NoError(t, err)

	_, all := collectChunks(t, ch)
	last := all[len(all)-1]
	require.Equal(t, "error", last.Type)
	assert.Contains(t, last.Err.Error(), "model not found")
}

func TestLlamaServerStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/completion", r.URL.Path)
		fmt.Fprintln(w, `data: {"content":"Hi","stop":false}`)
		fmt.Fprintln(w)
		fmt.Fprintln(w, `data: {"content":" there","stop":false}`)
		fmt.Fprintln(w)
		fmt.Fprintln(w, `data: {"content":"","stop":true,"tokens_predicted":2,"tokens_evaluated":8}`)
	}))
	defer server.Close()

	p, err := NewLlamaServerProvider(Config{Provider: "llamacpp", Host: server.URL, Model: "local"})
	require.NoError(t, err)

	ch, err := p.GenerateStreaming(context.Background(), "prompt", GenerateOptions{MaxTokens: 64})
	require.NoError(t, err)

	text, all := collectChunks(t, ch)
	assert.Equal(t, "Hi there", text)

	last := all[len(all)-1]
	assert.Equal(t, "done", last.Type)
	assert.Equal(t, 10, last.Tokens)
}

func TestNewSelectsProvider(t *testing.T) {
	p, err := New(Config{Provider: "ollama"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaProvider{}, p)

	p, err = New(Config{Provider: "llamacpp"})
	require.NoError(t, err)
	assert.IsType(t, &LlamaServerProvider{}, p)

	_, err = New(Config{Provider: "openai"})
	assert.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()

	assert.Equal(t, "ollama", cfg.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.Host)
	assert.Equal(t, 4096, cfg.ContextWindow)
	assert.Equal(t, DefaultStops, cfg.Stops)

	llamacpp := Config{Provider: "llamacpp"}
	llamacpp.SetDefaults()
	assert.Equal(t, "http://localhost:8080", llamacpp.Host)
}

func TestResponseBudgetClamps(t *testing.T) {
	// Tiny prompt, huge window: capped at the max.
	assert.Equal(t, MaxResponseTokens, ResponseBudget("hi", 4096))

	// Window smaller than the prompt: floored at the min.
	long := ""
	for i := 0; i < 500; i++ {
		long += "word "
	}
	assert.Equal(t, MinResponseTokens, ResponseBudget(long, 10))
}
