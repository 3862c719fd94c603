// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/hearth/pkg/catalog"
	"github.com/kadirpekel/hearth/pkg/config"
	"github.com/kadirpekel/hearth/pkg/generate"
	"github.com/kadirpekel/hearth/pkg/indexer"
	"github.com/kadirpekel/hearth/pkg/llms"
	"github.com/kadirpekel/hearth/pkg/retrieval"
	"github.com/kadirpekel/hearth/pkg/runtime"
	"github.com/kadirpekel/hearth/pkg/tools"
	"github.com/kadirpekel/hearth/pkg/vector"
)

type fakeProvider struct {
	response string
}

func (p *fakeProvider) GenerateStreaming(ctx context.Context, prompt string, opts llms.GenerateOptions) (<-chan llms.StreamChunk, error) {
	out := make(chan llms.StreamChunk)
	go func() {
		defer close(out)
		out <- llms.StreamChunk{Type: "text", Text: p.response}
		out <- llms.StreamChunk{Type: "done"}
	}()
	return out, nil
}

func (p *fakeProvider) Model() string { return "fake" }
func (p *fakeProvider) Close() error  { return nil }

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

func (e fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = e.Embed(ctx, texts[i])
	}
	return out, nil
}

func (fakeEmbedder) Dimension() int { return 4 }
func (fakeEmbedder) Model() string  { return "fake" }
func (fakeEmbedder) Close() error   { return nil }

type fakeVectors struct {
	cleared int
	records map[string]vector.Record
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{records: make(map[string]vector.Record)}
}

func (v *fakeVectors) Upsert(_ context.Context, records []vector.Record) error {
	for _, rec := range records {
		v.records[rec.ID] = rec
	}
	return nil
}

func (v *fakeVectors) Delete(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(v.records, id)
	}
	return nil
}

func (v *fakeVectors) DeleteByFile(_ context.Context, fileID string) error {
	for id, rec := range v.records {
		if rec.Payload[vector.PayloadFileID] == fileID {
			delete(v.records, id)
		}
	}
	return nil
}

func (v *fakeVectors) Query(context.Context, []float32, int, *vector.Filter) ([]vector.Result, error) {
	results := make([]vector.Result, 0, len(v.records))
	for id, rec := range v.records {
		results = append(results, vector.Result{ID: id, Score: 0.9, Content: rec.Content, Payload: rec.Payload})
	}
	return results, nil
}

func (v *fakeVectors) Clear(context.Context) error {
	v.cleared++
	v.records = make(map[string]vector.Record)
	return nil
}

func (v *fakeVectors) Count(context.Context) (int, error) { return len(v.records), nil }
func (v *fakeVectors) Close() error                       { return nil }

type testEnv struct {
	server  *Server
	catalog *catalog.Store
	vectors *fakeVectors
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cat, err := catalog.Open(catalog.Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "server.db") + "?_foreign_keys=on",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	vectors := newFakeVectors()
	emb := fakeEmbedder{}
	retriever := retrieval.New(cat, emb, vectors)
	provider := &fakeProvider{response: "Hello from the model."}
	registry := tools.NewBuiltinRegistry(nil)

	srv, err := New(config.ServerConfig{Host: "127.0.0.1", Port: 0, CORSOrigins: []string{"*"}}, Deps{
		Catalog:   cat,
		Vectors:   vectors,
		Embedder:  emb,
		Retriever: retriever,
		Generator: generate.New(provider, cat, retriever, 2048, nil, 0),
		Machine:   runtime.NewMachine(provider, cat, retriever, registry, 0),
		Indexer:   indexer.New(cat, vectors, emb, 2),
		Registry:  registry,
	})
	require.NoError(t, err)

	return &testEnv{server: srv, catalog: cat, vectors: vectors}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSaveMessage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/save-message", map[string]string{
		"conversation_id": "conv-1",
		"role":            "user",
		"content":         "hello",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status    string `json:"status"`
		MessageID string `json:"message_id"`
	}
	decodeResponse(t, rec, &resp)
	assert.Equal(t, "saved", resp.Status)
	assert.NotEmpty(t, resp.MessageID)

	msgs, err := env.catalog.RecentMessages(context.Background(), "conv-1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestSaveMessageRejectsBadRole(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/save-message", map[string]string{
		"conversation_id": "conv-1",
		"role":            "system",
		"content":         "nope",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestDirectoryLifecycle(t *testing.T) {
	env := newTestEnv(t)
	root := t.TempDir()

	rec := env.do(t, http.MethodPost, "/rag/directories", map[string]any{
		"path":          root,
		"file_patterns": []string{"*.md"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var dir catalog.Directory
	decodeResponse(t, rec, &dir)
	assert.NotEmpty(t, dir.ID)
	assert.True(t, dir.IsActive)

	rec = env.do(t, http.MethodGet, "/rag/directories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Total int `json:"total"`
	}
	decodeResponse(t, rec, &list)
	assert.Equal(t, 1, list.Total)

	rec = env.do(t, http.MethodDelete, "/rag/directories/"+dir.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/rag/directories", nil)
	decodeResponse(t, rec, &list)
	assert.Equal(t, 0, list.Total)
}

func TestCreateDirectoryRejectsMissingPath(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/rag/directories", map[string]any{
		"path": filepath.Join(t.TempDir(), "does-not-exist"),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanUnknownDirectoryIs404(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/rag/directories/no-such-id/scan", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRetrieveWithoutContextIsEmpty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/rag/retrieve", map[string]string{
		"query":           "anything",
		"conversation_id": "conv-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Total int `json:"total"`
	}
	decodeResponse(t, rec, &resp)
	assert.Equal(t, 0, resp.Total)
}

func TestIndexStats(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/rag/index-stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats catalog.IndexStats
	decodeResponse(t, rec, &stats)
	assert.Equal(t, 0, stats.TotalFiles)
}

func TestSettingsRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/rag/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var settings catalog.Settings
	decodeResponse(t, rec, &settings)
	assert.Equal(t, 1000, settings.ChunkSize)

	settings.TopK = 7
	rec = env.do(t, http.MethodPut, "/rag/settings", settings)
	require.Equal(t, http.StatusOK, rec.Code)

	decodeResponse(t, rec, &settings)
	assert.Equal(t, 7, settings.TopK)
	assert.Zero(t, env.vectors.cleared, "unchanged model must not clear vectors")
}

func TestSettingsModelChangeInvalidatesIndex(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/rag/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var settings catalog.Settings
	decodeResponse(t, rec, &settings)

	settings.EmbeddingModel = "nomic-embed-text"
	rec = env.do(t, http.MethodPut, "/rag/settings", settings)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, env.vectors.cleared)
}

func TestClearIndex(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/rag/clear-index", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.vectors.cleared)
}

func TestListToolsIncludesBuiltins(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/tools", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tools []tools.ToolInfo `json:"tools"`
		Total int              `json:"total"`
	}
	decodeResponse(t, rec, &resp)
	assert.Equal(t, 4, resp.Total)

	names := make([]string, 0, len(resp.Tools))
	for _, info := range resp.Tools {
		names = append(names, info.Name)
	}
	assert.Contains(t, names, "open_app")
	assert.Contains(t, names, "delete_file")
}

func TestUserToolLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/tools", map[string]any{
		"name":        "echo_args",
		"description": "Echo stdin back",
		"command":     "cat",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/tools", nil)
	var resp struct {
		Total int `json:"total"`
	}
	decodeResponse(t, rec, &resp)
	assert.Equal(t, 5, resp.Total)

	rec = env.do(t, http.MethodDelete, "/tools/echo_args", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/tools", nil)
	decodeResponse(t, rec, &resp)
	assert.Equal(t, 4, resp.Total)
}

func TestCreateToolRejectsInvalidDefinition(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/tools", map[string]any{
		"name":    "delete_file",
		"command": "true",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "shadows a built-in")
}

func TestDeleteBuiltinToolRefused(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodDelete, "/tools/open_app", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateStreamsNDJSON(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/generate", map[string]string{
		"prompt":          "hi",
		"conversation_id": "none",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-transform", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	var lines []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NotEmpty(t, lines)

	var text strings.Builder
	for _, line := range lines[:len(lines)-1] {
		assert.NotContains(t, line, "context_info")
		token, ok := line["token"].(string)
		require.True(t, ok)
		text.WriteString(token)
	}
	assert.Equal(t, "Hello from the model.", text.String())
	assert.Equal(t, map[string]any{"done": true}, lines[len(lines)-1])
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/generate", map[string]string{"prompt": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateSSEFraming(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/generate-sse", map[string]string{"prompt": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: start\n"))
	assert.Contains(t, body, "event: message\n")
	assert.Contains(t, body, "event: done\n")
}

func TestToolsExecutePlainAnswer(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/tools/execute", map[string]string{
		"input": "What is 2+2?",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result runtime.Result
	decodeResponse(t, rec, &result)
	assert.True(t, result.Success)
	assert.Equal(t, "Hello from the model.", result.Response)
	assert.Empty(t, result.ToolsCalled)
}

func TestGenerateWithoutModelIs503(t *testing.T) {
	env := newTestEnv(t)
	env.server.deps.Generator = nil

	rec := env.do(t, http.MethodPost, "/generate", map[string]string{"prompt": "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
