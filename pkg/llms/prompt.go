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

import "strings"

// DefaultSystemPrompt is used when no system prompt is configured.
const DefaultSystemPrompt = "You are a helpful AI assistant running locally on the user's machine."

// Turn is one prior exchange in the conversation.
type Turn struct {
	Role    string
	Content string
}

// PromptInput carries everything that goes into a prompt.
type PromptInput struct {
	SystemPrompt string
	Rules        string
	Context      string
	History      []Turn
	Query        string
}

// BuildPrompt assembles the full prompt text. Section order is fixed:
// system prompt, retrieved context, conversation history, current query.
// Empty sections are omitted entirely.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	system := in.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	b.WriteString(system)
	if in.Rules != "" {
		b.WriteString("\n\nADDITIONAL RULES:\n")
		b.WriteString(in.Rules)
	}
	b.WriteString("\n")

	if in.Context != "" {
		b.WriteString("\n[File/Document Context (RAG)]\n")
		b.WriteString(in.Context)
		b.WriteString("\n")
	}

	if len(in.History) > 0 {
		b.WriteString("\n[Conversation History]\n")
		for _, turn := range in.History {
			switch turn.Role {
			case "assistant":
				b.WriteString("Assistant: ")
			case "system":
				b.WriteString("System: ")
			default:
				b.WriteString("Human: ")
			}
			b.WriteString(turn.Content)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n[Current Query]\nHuman: ")
	b.WriteString(in.Query)
	b.WriteString("\nAssistant:")

	return b.String()
}
