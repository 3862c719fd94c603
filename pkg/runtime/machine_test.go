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

package runtime

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/hearth/pkg/catalog"
	"github.com/kadirpekel/hearth/pkg/llms"
	"github.com/kadirpekel/hearth/pkg/retrieval"
	"github.com/kadirpekel/hearth/pkg/tools"
)

// scriptedProvider replays a fixed response, split into chunks so the
// streaming path is exercised.
type scriptedProvider struct {
	response string
	prompts  []string
}

func (p *scriptedProvider) GenerateStreaming(ctx context.Context, prompt string, opts llms.GenerateOptions) (<-chan llms.StreamChunk, error) {
	p.prompts = append(p.prompts, prompt)
	out := make(chan llms.StreamChunk)
	go func() {
		defer close(out)
		text := p.response
		for len(text) > 0 {
			n := 7
			if n > len(text) {
				n = len(text)
			}
			out <- llms.StreamChunk{Type: "text", Text: text[:n]}
			text = text[n:]
		}
		out <- llms.StreamChunk{Type: "done"}
	}()
	return out, nil
}

func (p *scriptedProvider) Model() string { return "scripted" }
func (p *scriptedProvider) Close() error  { return nil }

func newTestMachine(t *testing.T, response string, registry *tools.Registry) (*Machine, *scriptedProvider, *catalog.Store) {
	t.Helper()

	cat, err := catalog.Open(catalog.Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "machine.db") + "?_foreign_keys=on",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	provider := &scriptedProvider{response: response}
	retriever := retrieval.New(cat, nil, nil)
	return NewMachine(provider, cat, retriever, registry, 0), provider, cat
}

func TestRunPlainAnswer(t *testing.T) {
	m, provider, _ := newTestMachine(t, "The capital of France is Paris.", tools.NewBuiltinRegistry(nil))

	result, err := m.Run(context.Background(), "What is the capital of France?", "")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "The capital of France is Paris.", result.Response)
	assert.Empty(t, result.ToolsCalled)
	require.Len(t, result.Messages, 2)
	assert.Equal(t, "assistant", result.Messages[1].Role)

	// The prompt carries the tool protocol even on plain turns.
	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "[Available Tools]")
	assert.Contains(t, provider.prompts[0], "open_app")
}

func TestRunDispatchesToolCall(t *testing.T) {
	registry := tools.NewRegistry()
	launched := ""
	require.NoError(t, registry.Register(tools.NewFuncTool(
		tools.ToolInfo{
			Name:        "open_app",
			Description: "Open an application",
			Parameters:  []tools.ToolParameter{{Name: "app_name", Type: "string", Required: true}},
		},
		func(_ context.Context, args map[string]any) (string, error) {
			launched, _ = args["app_name"].(string)
			return "Opened application: Slack", nil
		},
	)))

	m, _, cat := newTestMachine(t,
		`{"tool_call": {"name": "open_app", "arguments": {"app_name": "Slack"}}}`,
		registry)

	result, err := m.Run(context.Background(), "Open Slack for me", "")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "Slack", launched)
	assert.Equal(t, []string{"open_app"}, result.ToolsCalled)
	assert.Equal(t, "Opened application: Slack", result.Response)
	require.Len(t, result.Messages, 3)
	assert.Equal(t, "tool", result.Messages[2].Role)

	// Every dispatch lands in the execution log.
	execs, err := cat.RecentToolExecutions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, "open_app", execs[0].ToolName)
	assert.Contains(t, execs[0].Arguments, "Slack")
}

func TestRunUnknownToolBecomesResult(t *testing.T) {
	m, _, _ := newTestMachine(t,
		`{"tool_call": {"name": "launch_missiles", "arguments": {}}}`,
		tools.NewBuiltinRegistry(nil))

	result, err := m.Run(context.Background(), "do it", "")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, []string{"launch_missiles"}, result.ToolsCalled)
	assert.Contains(t, result.Response, "Tool execution error")
	assert.Contains(t, result.Response, "unknown tool")
}

func TestRunRejectsEmptyInput(t *testing.T) {
	m, _, _ := newTestMachine(t, "irrelevant", tools.NewBuiltinRegistry(nil))

	_, err := m.Run(context.Background(), "   ", "")
	require.Error(t, err)
}

func TestRunStreamEmitsTokensAndToolEvents(t *testing.T) {
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(tools.NewFuncTool(
		tools.ToolInfo{Name: "ping", Description: "ping"},
		func(context.Context, map[string]any) (string, error) { return "pong", nil },
	)))

	m, _, _ := newTestMachine(t,
		`On it. {"tool_call": {"name": "ping", "arguments": {}}}`,
		registry)

	events, err := m.RunStream(context.Background(), "ping please", "")
	require.NoError(t, err)

	var types []string
	var toolResult string
	for ev := range events {
		types = append(types, ev.Type)
		if ev.Type == "tool_result" {
			toolResult = ev.ToolResult
		}
	}

	require.NotEmpty(t, types)
	assert.Equal(t, "token", types[0])
	assert.Equal(t, "done", types[len(types)-1])
	assert.Contains(t, types, "tool_call")
	assert.Equal(t, "pong", toolResult)
}
