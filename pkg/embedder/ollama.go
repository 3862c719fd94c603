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

package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/kadirpekel/hearth/pkg/httpclient"
)

// Ollama's llama runner crashes on concurrent embedding requests, so all
// requests through this embedder are serialized.
var ollamaEmbedMu sync.Mutex

// OllamaConfig configures the Ollama embedding client.
type OllamaConfig struct {
	Host    string `yaml:"host"`
	Model   string `yaml:"model"`
	Timeout int    `yaml:"timeout"`
}

// SetDefaults applies the standard local server settings.
func (c *OllamaConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "http://localhost:11434"
	}
	if c.Model == "" {
		c.Model = "nomic-embed-text"
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
}

// OllamaEmbedder embeds text through a local Ollama server.
type OllamaEmbedder struct {
	client *httpclient.Client
	host   string

	mu    sync.RWMutex
	model string
	dim   int
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// NewOllamaEmbedder creates an embedder for the configured server.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	cfg.SetDefaults()
	return &OllamaEmbedder{
		client: httpclient.New(httpclient.WithTimeout(time.Duration(cfg.Timeout) * time.Second)),
		host:   cfg.Host,
		model:  cfg.Model,
	}
}

// Embed converts one text to a vector embedding.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	return vectors[0], nil
}

// EmbedBatch converts texts to vector embeddings, submitting at most
// MaxBatchSize texts per request.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *OllamaEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ollamaEmbedMu.Lock()
	defer ollamaEmbedMu.Unlock()

	e.mu.RLock()
	model := e.model
	e.mu.RUnlock()

	body, err := json.Marshal(ollamaEmbedRequest{Model: model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embed request failed with status %d: %s", resp.StatusCode, string(data))
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("embedding model error: %s", parsed.Error)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(parsed.Embeddings))
	}

	if len(parsed.Embeddings) > 0 {
		e.mu.Lock()
		e.dim = len(parsed.Embeddings[0])
		e.mu.Unlock()
	}

	return parsed.Embeddings, nil
}

// Dimension returns the vector dimension seen on the last request.
func (e *OllamaEmbedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dim
}

// Model returns the active model identifier.
func (e *OllamaEmbedder) Model() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model
}

// Reload swaps the model identifier. The dimension resets until the next
// request observes the new model's output.
func (e *OllamaEmbedder) Reload(model string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.model = model
	e.dim = 0
}

// Close releases resources. The HTTP client holds none.
func (e *OllamaEmbedder) Close() error {
	return nil
}

var _ Embedder = (*OllamaEmbedder)(nil)
var _ Reloadable = (*OllamaEmbedder)(nil)
