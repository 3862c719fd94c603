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

// Package runtime runs the tool-calling state machine: one model turn,
// an optional tool dispatch, and termination. Deeper tool chains are
// deliberately unsupported; a turn makes at most one tool round trip.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadirpekel/hearth/pkg/catalog"
	"github.com/kadirpekel/hearth/pkg/llms"
	"github.com/kadirpekel/hearth/pkg/metrics"
	"github.com/kadirpekel/hearth/pkg/retrieval"
	"github.com/kadirpekel/hearth/pkg/tools"
)

// historyWindow is how many prior messages enter the prompt.
const historyWindow = 10

// Message is one entry of the machine's transcript. Role is "user",
// "assistant", or "tool".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result is the structured outcome of one machine run.
type Result struct {
	Response    string    `json:"response"`
	ToolsCalled []string  `json:"tools_called"`
	Messages    []Message `json:"messages"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
}

// Event is one unit of a streamed machine run.
type Event struct {
	Type       string    `json:"type"` // token, tool_call, tool_result, done, error
	Token      string    `json:"token,omitempty"`
	ToolCall   *ToolCall `json:"tool_call,omitempty"`
	ToolResult string    `json:"tool_result,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Machine wires the model, retrieval, and the tool registry together.
// State transitions happen only at message boundaries; the model can
// stream freely inside the LLM node.
type Machine struct {
	provider  llms.Provider
	catalog   *catalog.Store
	retriever *retrieval.Retriever
	registry  *tools.Registry
	budget    int
	logger    *slog.Logger
}

// NewMachine creates a machine. contextBudget caps the retrieved
// context characters; zero uses the retrieval default.
func NewMachine(provider llms.Provider, cat *catalog.Store, retriever *retrieval.Retriever, registry *tools.Registry, contextBudget int) *Machine {
	return &Machine{
		provider:  provider,
		catalog:   cat,
		retriever: retriever,
		registry:  registry,
		budget:    contextBudget,
		logger:    slog.Default(),
	}
}

// Run executes one full turn: LLM, optional tool dispatch, end.
func (m *Machine) Run(ctx context.Context, input, conversationID string) (*Result, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("input is required")
	}

	prompt, err := m.buildPrompt(ctx, input, conversationID)
	if err != nil {
		return nil, err
	}

	text, err := m.complete(ctx, prompt, nil)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	result := &Result{
		ToolsCalled: []string{},
		Messages: []Message{
			{Role: "user", Content: input},
			{Role: "assistant", Content: text},
		},
	}

	// Transition predicate: does the last model message carry a call?
	call, ok := ParseToolCall(text)
	if !ok {
		result.Response = text
		result.Success = true
		return result, nil
	}

	toolResult := m.dispatch(ctx, call)
	result.ToolsCalled = append(result.ToolsCalled, call.Name)
	result.Messages = append(result.Messages, Message{Role: "tool", Content: toolResult})

	// One round trip per turn: after TOOL the machine ends, and the
	// response is the last non-system message.
	result.Response = toolResult
	result.Success = true
	return result, nil
}

// RunStream executes one turn, emitting events as they happen. The
// channel closes after a done or error event.
func (m *Machine) RunStream(ctx context.Context, input, conversationID string) (<-chan Event, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("input is required")
	}

	prompt, err := m.buildPrompt(ctx, input, conversationID)
	if err != nil {
		return nil, err
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)

		text, err := m.complete(ctx, prompt, func(token string) {
			select {
			case out <- Event{Type: "token", Token: token}:
			case <-ctx.Done():
			}
		})
		if err != nil {
			out <- Event{Type: "error", Error: err.Error()}
			return
		}

		if call, ok := ParseToolCall(text); ok {
			out <- Event{Type: "tool_call", ToolCall: call}
			out <- Event{Type: "tool_result", ToolResult: m.dispatch(ctx, call)}
		}
		out <- Event{Type: "done"}
	}()
	return out, nil
}

// complete streams one model call to completion and returns the full
// text. onToken, when set, observes each piece as it arrives.
func (m *Machine) complete(ctx context.Context, prompt string, onToken func(string)) (string, error) {
	opts := llms.GenerateOptions{MaxTokens: llms.MaxResponseTokens}
	chunks, err := m.provider.GenerateStreaming(ctx, prompt, opts)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for chunk := range chunks {
		switch chunk.Type {
		case "text":
			b.WriteString(chunk.Text)
			if onToken != nil {
				onToken(chunk.Text)
			}
		case "error":
			return "", chunk.Err
		}
	}
	return b.String(), nil
}

// dispatch looks up and invokes a tool, returning its result string.
// Failures become the result, never a panic or an aborted run, and
// every invocation is logged.
func (m *Machine) dispatch(ctx context.Context, call *ToolCall) string {
	argsJSON, _ := json.Marshal(call.Arguments)

	var result string
	tool, ok := m.registry.Get(call.Name)
	if !ok {
		result = fmt.Sprintf("Tool execution error: unknown tool %q", call.Name)
		metrics.ToolExecutions.WithLabelValues(call.Name, "error").Inc()
	} else {
		output, err := tool.Execute(ctx, call.Arguments)
		if err != nil {
			result = "Tool execution error: " + err.Error()
			metrics.ToolExecutions.WithLabelValues(call.Name, "error").Inc()
		} else {
			result = output
			metrics.ToolExecutions.WithLabelValues(call.Name, "ok").Inc()
		}
	}

	if err := m.catalog.LogToolExecution(ctx, call.Name, string(argsJSON), result); err != nil {
		m.logger.Warn("Failed to log tool execution", "tool", call.Name, "error", err)
	}
	m.logger.Info("Tool dispatched", "tool", call.Name, "result_len", len(result))
	return result
}

// buildPrompt assembles the LLM-node prompt: system policy with the
// tool protocol appended, retrieved context, history, current input.
func (m *Machine) buildPrompt(ctx context.Context, input, conversationID string) (string, error) {
	settings, err := m.catalog.GetSettings(ctx)
	if err != nil {
		return "", err
	}

	var contextBlock string
	dirs, err := m.retriever.ResolveDirectories(ctx, conversationID, nil)
	if err != nil {
		return "", err
	}
	if len(dirs) > 0 {
		results, err := m.retriever.Retrieve(ctx, input, dirs)
		if err != nil {
			m.logger.Warn("Retrieval failed for tool turn", "error", err)
		} else {
			contextBlock = retrieval.FormatContext(results, m.budget)
		}
	}

	var history []llms.Turn
	if conversationID != "" {
		messages, err := m.catalog.RecentMessages(ctx, conversationID, historyWindow)
		if err != nil {
			return "", err
		}
		for _, msg := range messages {
			history = append(history, llms.Turn{Role: msg.Role, Content: msg.Content})
		}
	}

	system := settings.SystemPrompt
	if system == "" {
		system = llms.DefaultSystemPrompt
	}
	system += "\n\n" + toolInstructions(m.registry.List())

	return llms.BuildPrompt(llms.PromptInput{
		SystemPrompt: system,
		Rules:        settings.Rules,
		Context:      contextBlock,
		History:      history,
		Query:        input,
	}), nil
}
