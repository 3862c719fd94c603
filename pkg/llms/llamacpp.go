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

// LlamaServerProvider streams completions from a llama-server instance
// via its /completion endpoint. llama-server frames stream chunks as
// SSE-style "data: {json}" lines.
type LlamaServerProvider struct {
	cfg        Config
	httpClient *httpclient.Client
	baseURL    string
}

type llamaCompletionRequest struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict"`
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
	Stream      bool     `json:"stream"`
}

type llamaCompletionChunk struct {
	Content         string `json:"content"`
	Stop            bool   `json:"stop"`
	TokensPredicted int    `json:"tokens_predicted"`
	TokensEvaluated int    `json:"tokens_evaluated"`
}

// NewLlamaServerProvider creates a provider against cfg.Host.
func NewLlamaServerProvider(cfg Config) (*LlamaServerProvider, error) {
	cfg.SetDefaults()
	return &LlamaServerProvider{
		cfg: cfg,
		httpClient: httpclient.New(
			httpclient.WithTimeout(time.Duration(cfg.Timeout) * time.Second),
		),
		baseURL: strings.TrimSuffix(cfg.Host, "/"),
	}, nil
}

// Model returns the configured model name.
func (p *LlamaServerProvider) Model() string { return p.cfg.Model }

// Close releases nothing; the HTTP client has no persistent state.
func (p *LlamaServerProvider) Close() error { return nil }

// GenerateStreaming streams tokens for the prompt. The channel closes
// after a "done" or "error" chunk.
func (p *LlamaServerProvider) GenerateStreaming(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamChunk, error) {
	out := make(chan StreamChunk, 100)

	go func() {
		defer close(out)
		if err := p.stream(ctx, prompt, opts, out); err != nil {
			out <- StreamChunk{Type: "error", Err: err}
		}
	}()

	return out, nil
}

func (p *LlamaServerProvider) stream(ctx context.Context, prompt string, opts GenerateOptions, out chan<- StreamChunk) error {
	stops := opts.Stops
	if len(stops) == 0 {
		stops = p.cfg.Stops
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = p.cfg.Temperature
	}

	request := llamaCompletionRequest{
		Prompt:      prompt,
		NPredict:    opts.MaxTokens,
		Temperature: temperature,
		Stop:        stops,
		Stream:      true,
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/completion", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			bodyBytes, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("llama-server request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
		}
	}
	if err != nil {
		return fmt.Errorf("failed to make streaming request: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("failed to make streaming request: no response received")
	}

	reader := bufio.NewReader(resp.Body)
	var totalTokens int
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				out <- StreamChunk{Type: "done", Tokens: totalTokens}
				return nil
			}
			return fmt.Errorf("failed to read stream: %w", err)
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		line = bytes.TrimPrefix(line, []byte("data: "))

		var chunk llamaCompletionChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}

		if chunk.Content != "" {
			select {
			case out <- StreamChunk{Type: "text", Text: chunk.Content}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if chunk.Stop {
			totalTokens = chunk.TokensEvaluated + chunk.TokensPredicted
			out <- StreamChunk{Type: "done", Tokens: totalTokens}
			return nil
		}
	}
}

var _ Provider = (*LlamaServerProvider)(nil)
