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

// Package tools holds the closed set of built-in tools the assistant can
// invoke plus user-defined subprocess tools. Tools return short result
// strings; anything longer belongs in a file the user can open.
package tools

import (
	"context"
	"fmt"
)

// ToolParameter describes one argument a tool accepts.
type ToolParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ToolInfo is the metadata a tool exposes to the model and the API.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters,omitempty"`
	Builtin     bool            `json:"builtin"`
}

// Tool is one invokable adapter. Execute returns a short human-readable
// result string; errors are execution failures, not unhappy results.
type Tool interface {
	GetInfo() ToolInfo
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// RegistryError reports a registry-level failure with its context.
type RegistryError struct {
	Action  string
	Tool    string
	Message string
	Err     error
}

func (e *RegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[tools:%s] %s: %s: %v", e.Action, e.Tool, e.Message, e.Err)
	}
	return fmt.Sprintf("[tools:%s] %s: %s", e.Action, e.Tool, e.Message)
}

func (e *RegistryError) Unwrap() error { return e.Err }

// funcTool adapts a plain function into a Tool. Handy for wiring and
// for tests that need a tool with observable behavior.
type funcTool struct {
	info ToolInfo
	fn   func(ctx context.Context, args map[string]any) (string, error)
}

// NewFuncTool wraps fn as a Tool with the given metadata.
func NewFuncTool(info ToolInfo, fn func(ctx context.Context, args map[string]any) (string, error)) Tool {
	return &funcTool{info: info, fn: fn}
}

func (t *funcTool) GetInfo() ToolInfo { return t.info }

func (t *funcTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return t.fn(ctx, args)
}
