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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToolCallPlain(t *testing.T) {
	call, ok := ParseToolCall(`{"tool_call": {"name": "open_app", "arguments": {"app_name": "Slack"}}}`)
	require.True(t, ok)
	assert.Equal(t, "open_app", call.Name)
	assert.Equal(t, "Slack", call.Arguments["app_name"])
}

func TestParseToolCallEmbeddedInProse(t *testing.T) {
	text := `Sure, I'll open that for you.
{"tool_call": {"name": "open_file", "arguments": {"path": "/tmp/notes.md"}}}
Let me know if you need anything else.`

	call, ok := ParseToolCall(text)
	require.True(t, ok)
	assert.Equal(t, "open_file", call.Name)
	assert.Equal(t, "/tmp/notes.md", call.Arguments["path"])
}

func TestParseToolCallNestedBracesAndStrings(t *testing.T) {
	// Braces and quotes inside argument strings must not confuse the
	// brace walker.
	text := `{"tool_call": {"name": "open_file", "arguments": {"path": "a{b}\"c.txt"}}}`

	call, ok := ParseToolCall(text)
	require.True(t, ok)
	assert.Equal(t, `a{b}"c.txt`, call.Arguments["path"])
}

func TestParseToolCallObjectArguments(t *testing.T) {
	text := `{"tool_call": {"name": "word_count", "arguments": {"options": {"mode": "fast", "limits": {"max": 10}}}}}`

	call, ok := ParseToolCall(text)
	require.True(t, ok)
	opts, isMap := call.Arguments["options"].(map[string]any)
	require.True(t, isMap)
	assert.Equal(t, "fast", opts["mode"])
}

func TestParseToolCallAbsent(t *testing.T) {
	for _, text := range []string{
		"",
		"Just a normal answer about files and apps.",
		`The syntax is {"tool_cal": {"name": "x"}} with a marker typo.`,
		`{"tool_call": unterminated`,
		`{"tool_call": {"arguments": {}}}`, // missing name
	} {
		_, ok := ParseToolCall(text)
		assert.False(t, ok, "expected no call in %q", text)
	}
}

func TestParseToolCallMissingArguments(t *testing.T) {
	call, ok := ParseToolCall(`{"tool_call": {"name": "close_app"}}`)
	require.True(t, ok)
	assert.NotNil(t, call.Arguments)
	assert.Empty(t, call.Arguments)
}

func TestStripToolCall(t *testing.T) {
	text := `Opening now. {"tool_call": {"name": "open_app", "arguments": {"app_name": "Slack"}}}`
	assert.Equal(t, "Opening now.", StripToolCall(text))

	plain := "No call here."
	assert.Equal(t, plain, StripToolCall(plain))
}
