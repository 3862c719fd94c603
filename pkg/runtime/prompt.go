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
	"fmt"
	"strings"

	"github.com/kadirpekel/hearth/pkg/tools"
)

// toolInstructions renders the tool protocol section of the system
// prompt: the available schemas, the wire format, and few-shot
// examples that anchor the format.
func toolInstructions(infos []tools.ToolInfo) string {
	var b strings.Builder

	b.WriteString("[Available Tools]\n")
	b.WriteString("You can invoke the following tools:\n\n")
	for _, info := range infos {
		fmt.Fprintf(&b, "- %s: %s\n", info.Name, info.Description)
		for _, p := range info.Parameters {
			req := "optional"
			if p.Required {
				req = "required"
			}
			fmt.Fprintf(&b, "    %s (%s, %s): %s\n", p.Name, p.Type, req, p.Description)
		}
	}

	b.WriteString(`
When (and only when) you need a tool, respond with exactly one JSON object:
{"tool_call": {"name": "<tool_name>", "arguments": {"<param>": "<value>"}}}
Do not wrap the object in markdown. If no tool is needed, answer normally.

Examples:
Human: Open Slack for me
Assistant: {"tool_call": {"name": "open_app", "arguments": {"app_name": "Slack"}}}
Human: What is the capital of France?
Assistant: The capital of France is Paris.
`)
	return b.String()
}
