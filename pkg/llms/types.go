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

// Package llms streams completions from a local model server. Ollama and
// llama-server backends are supported; both emit StreamChunk values over
// a channel.
package llms

import (
	"context"
	"fmt"
)

// DefaultStops end generation at turn boundaries.
var DefaultStops = []string{"</s>", "<|endoftext|>", "\nUser:"}

// Config selects and configures the generation backend.
type Config struct {
	Provider      string   `yaml:"provider"`
	Host          string   `yaml:"host"`
	Model         string   `yaml:"model"`
	ContextWindow int      `yaml:"context_window"`
	Temperature   float64  `yaml:"temperature"`
	Timeout       int      `yaml:"timeout"`
	Stops         []string `yaml:"stops"`
}

// SetDefaults applies the local Ollama backend as the default.
func (c *Config) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "ollama"
	}
	if c.Host == "" {
		switch c.Provider {
		case "llamacpp":
			c.Host = "http://localhost:8080"
		default:
			c.Host = "http://localhost:11434"
		}
	}
	if c.Model == "" {
		c.Model = "llama3.2"
	}
	if c.ContextWindow == 0 {
		c.ContextWindow = 4096
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.Timeout == 0 {
		c.Timeout = 120
	}
	if len(c.Stops) == 0 {
		c.Stops = DefaultStops
	}
}

// Validate checks the backend selection.
func (c *Config) Validate() error {
	switch c.Provider {
	case "", "ollama", "llamacpp":
	default:
		return fmt.Errorf("unsupported llm provider: %s (supported: ollama, llamacpp)", c.Provider)
	}
	if c.ContextWindow < 0 {
		return fmt.Errorf("context_window must be non-negative, got %d", c.ContextWindow)
	}
	return nil
}

// StreamChunk is one unit of streamed model output.
type StreamChunk struct {
	Type   string // "text", "done", "error"
	Text   string
	Tokens int
	Err    error
}

// GenerateOptions tune a single generation request.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	Stops       []string
}

// Provider streams completions for a fully built prompt. The returned
// channel is closed when generation ends; a chunk of type "error"
// precedes the close on failure.
type Provider interface {
	GenerateStreaming(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamChunk, error)
	Model() string
	Close() error
}

// New creates the configured provider.
func New(cfg Config) (Provider, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case "ollama":
		return NewOllamaProvider(cfg)
	case "llamacpp":
		return NewLlamaServerProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
