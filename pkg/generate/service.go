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

// Package generate owns the loaded LLM handle: it assembles the full
// prompt (system policy, retrieved context, recent history, current
// turn) and streams the model's answer as line-oriented events.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kadirpekel/hearth/pkg/catalog"
	"github.com/kadirpekel/hearth/pkg/llms"
	"github.com/kadirpekel/hearth/pkg/metrics"
	"github.com/kadirpekel/hearth/pkg/retrieval"
)

// historyWindow is how many prior messages enter the prompt.
const historyWindow = 10

// Request is one generation turn.
type Request struct {
	Prompt         string   `json:"prompt"`
	ConversationID string   `json:"conversation_id"`
	DirectoryIDs   []string `json:"directory_ids,omitempty"`
	UseMemory      bool     `json:"use_enhanced_memory"`
}

// Service streams completions. The model handle is a single
// process-wide resource: streams hold an exclusive lease for their
// whole duration, so concurrent requests queue.
type Service struct {
	provider      llms.Provider
	catalog       *catalog.Store
	retriever     *retrieval.Retriever
	contextWindow int
	stops         []string
	budget        int

	lease  sync.Mutex
	logger *slog.Logger
}

// New creates a generation service. extraStops are unioned with the
// default stop sequences; contextBudget of zero uses the retrieval
// default.
func New(provider llms.Provider, cat *catalog.Store, retriever *retrieval.Retriever, contextWindow int, extraStops []string, contextBudget int) *Service {
	return &Service{
		provider:      provider,
		catalog:       cat,
		retriever:     retriever,
		contextWindow: contextWindow,
		stops:         unionStops(extraStops),
		budget:        contextBudget,
		logger:        slog.Default(),
	}
}

// Stream runs one generation turn. The returned channel yields the
// context_info event first when any context was used, then tokens in
// order, then exactly one done or error event, and closes.
func (s *Service) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	prompt, info, err := s.buildPrompt(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)

		// Exclusive lease on the model for the whole stream.
		s.lease.Lock()
		defer s.lease.Unlock()

		if ctx.Err() != nil {
			metrics.GenerateRequests.WithLabelValues("cancelled").Inc()
			return
		}

		if info.RAGChunks > 0 || info.ConversationHistory > 0 {
			if !s.send(ctx, out, ContextEvent(info)) {
				return
			}
		}

		opts := llms.GenerateOptions{
			MaxTokens: llms.ResponseBudget(prompt, s.contextWindow),
			Stops:     s.stops,
		}
		chunks, err := s.provider.GenerateStreaming(ctx, prompt, opts)
		if err != nil {
			s.send(ctx, out, ErrorEvent(err.Error()))
			metrics.GenerateRequests.WithLabelValues("error").Inc()
			return
		}

		for chunk := range chunks {
			switch chunk.Type {
			case "text":
				if !s.send(ctx, out, TokenEvent(chunk.Text)) {
					metrics.GenerateRequests.WithLabelValues("cancelled").Inc()
					return
				}
			case "error":
				s.send(ctx, out, ErrorEvent(chunk.Err.Error()))
				metrics.GenerateRequests.WithLabelValues("error").Inc()
				return
			}
		}
		s.send(ctx, out, DoneEvent())
		metrics.GenerateRequests.WithLabelValues("ok").Inc()
	}()
	return out, nil
}

// send delivers an event unless the caller has gone away.
func (s *Service) send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// buildPrompt assembles the prompt and reports what context entered it.
func (s *Service) buildPrompt(ctx context.Context, req Request) (string, ContextInfo, error) {
	info := ContextInfo{Sources: []string{}}

	settings, err := s.catalog.GetSettings(ctx)
	if err != nil {
		return "", info, err
	}

	var contextBlock string
	dirs, err := s.retriever.ResolveDirectories(ctx, req.ConversationID, req.DirectoryIDs)
	if err != nil {
		return "", info, err
	}
	if len(dirs) > 0 {
		results, err := s.retriever.Retrieve(ctx, req.Prompt, dirs)
		if err != nil {
			// Retrieval trouble degrades to an uncontextualized answer.
			s.logger.Warn("Retrieval failed, generating without context", "error", err)
		} else {
			contextBlock = retrieval.FormatContext(results, s.budget)
			if contextBlock != "" {
				used := retrieval.Info(results)
				info.RAGChunks = used.ChunksUsed
				info.Sources = used.Sources
			}
		}
	}
	if info.Sources == nil {
		info.Sources = []string{}
	}

	var history []llms.Turn
	if req.UseMemory && req.ConversationID != "" {
		messages, err := s.catalog.RecentMessages(ctx, req.ConversationID, historyWindow)
		if err != nil {
			return "", info, err
		}
		for _, msg := range messages {
			history = append(history, llms.Turn{Role: msg.Role, Content: msg.Content})
		}
		info.ConversationHistory = len(history)
	}

	prompt := llms.BuildPrompt(llms.PromptInput{
		SystemPrompt: settings.SystemPrompt,
		Rules:        settings.Rules,
		Context:      contextBlock,
		History:      history,
		Query:        req.Prompt,
	})
	return prompt, info, nil
}

// unionStops merges the default stop sequences with configured extras,
// preserving order and dropping duplicates.
func unionStops(extra []string) []string {
	seen := make(map[string]bool)
	stops := make([]string, 0, len(llms.DefaultStops)+len(extra))
	for _, s := range append(append([]string{}, llms.DefaultStops...), extra...) {
		if !seen[s] {
			seen[s] = true
			stops = append(stops, s)
		}
	}
	return stops
}
