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

package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kadirpekel/hearth/pkg/httpclient"
)

// OllamaProvider streams completions from an Ollama server using the
// raw generate endpoint. Prompts are fully built by the caller, so chat
// templating on the server side is bypassed.
type OllamaProvider struct {
	cfg        Config
	httpClient *httpclient.Client
	baseURL    string
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Raw     bool           `json:"raw"`
	Stream  bool           `json:"stream"`
	Options *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64  `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type ollamaGenerateChunk struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

// NewOllamaProvider creates a provider against cfg.Host.
func NewOllamaProvider(cfg Config) (*OllamaProvider, error) {
	cfg.SetDefaults()
	return &OllamaProvider{
		cfg: cfg,
		httpClient: httpclient.New(
			httpclient.WithTimeout(time.Duration(cfg.Timeout) * time.Second),
		),
		baseURL: strings.TrimSuffix(cfg.Host, "/"),
	}, nil
}

// Model returns the configured model name.
func (p *OllamaProvider) Model() string { return p.cfg.Model }

// Close releases nothing; the HTTP client has no persistent state.
func (p *OllamaProvider) Close() error { return nil }

// GenerateStreaming streams tokens for the prompt. The channel closes
// after a "done" or "error" chunk.
func (p *OllamaProvider) GenerateStreaming(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamChunk, error) {
	out := make(chan StreamChunk, 100)

	go func() {
		defer close(out)
		if err := p.stream(ctx, prompt, opts, out); err != nil {
			out <- StreamChunk{Type: "error", Err: err}
		}
	}()

	return out, nil
}

func (p *OllamaProvider) stream(ctx context.Context, prompt string, opts GenerateOptions, out chan<- StreamChunk) error {
	stops := opts.Stops
	if len(stops) == 0 {
		stops = p.cfg.Stops
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = p.cfg.Temperature
	}

	request := ollamaGenerateRequest{
		Model:  p.cfg.Model,
		Prompt: prompt,
		Raw:    true,
		Stream: true,
		Options: &ollamaOptions{
			Temperature: temperature,
			NumPredict:  opts.MaxTokens,
			Stop:        stops,
		},
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			bodyBytes, _ := io.ReadAll(resp.Body)
			var errorJSON struct {
				Error string `json:"error"`
			}
			if json.Unmarshal(bodyBytes, &errorJSON) == nil && errorJSON.Error != "" {
				return fmt.Errorf("ollama API error: %s", errorJSON.Error)
			}
			return fmt.Errorf("ollama API request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
		}
	}
	if err != nil {
		return fmt.Errorf("failed to make streaming request: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("failed to make streaming request: no response received")
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to read stream: %w", err)
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var chunk ollamaGenerateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}

		if chunk.Error != "" {
			return fmt.Errorf("ollama API error: %s", chunk.Error)
		}

		if chunk.Response != "" {
			select {
			case out <- StreamChunk{Type: "text", Text: chunk.Response}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if chunk.Done {
			out <- StreamChunk{Type: "done", Tokens: chunk.PromptEvalCount + chunk.EvalCount}
			return nil
		}
	}
}

var _ Provider = (*OllamaProvider)(nil)
