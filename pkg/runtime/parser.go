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
	"encoding/json"
	"strings"
)

// toolCallMarker opens the JSON object the model emits to request a
// tool invocation.
const toolCallMarker = `{"tool_call"`

// ToolCall is a parsed tool invocation request.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ParseToolCall extracts a tool call embedded anywhere in model output.
// It finds the marker, walks braces to the matching close (string
// literals and escapes included), and decodes the result. Anything that
// fails to parse is treated as a plain answer, not an error.
func ParseToolCall(text string) (*ToolCall, bool) {
	start := strings.Index(text, toolCallMarker)
	if start < 0 {
		return nil, false
	}

	candidate, ok := balancedObject(text[start:])
	if !ok {
		return nil, false
	}

	var envelope struct {
		ToolCall *ToolCall `json:"tool_call"`
	}
	if err := json.Unmarshal([]byte(candidate), &envelope); err != nil {
		return nil, false
	}
	if envelope.ToolCall == nil || envelope.ToolCall.Name == "" {
		return nil, false
	}
	if envelope.ToolCall.Arguments == nil {
		envelope.ToolCall.Arguments = map[string]any{}
	}
	return envelope.ToolCall, true
}

// balancedObject returns the prefix of s up to the brace matching the
// opening one, skipping braces inside JSON strings.
func balancedObject(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false

	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// StripToolCall removes the tool-call object from text, returning the
// surrounding prose. Used when rendering what the model said around a
// call.
func StripToolCall(text string) string {
	start := strings.Index(text, toolCallMarker)
	if start < 0 {
		return text
	}
	candidate, ok := balancedObject(text[start:])
	if !ok {
		return text
	}
	return strings.TrimSpace(text[:start] + text[start+len(candidate):])
}
