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

package generate

import "encoding/json"

// ContextInfo summarizes what context entered the prompt. It is the
// payload of the context_info event.
type ContextInfo struct {
	RAGChunks           int      `json:"rag_chunks"`
	ConversationHistory int      `json:"conversation_history"`
	Sources             []string `json:"sources"`
}

const (
	kindToken = iota
	kindContext
	kindDone
	kindError
)

// Event is one line of a generation stream. Each event marshals to
// exactly one of the wire shapes: {"token": ...},
// {"context_info": {...}}, {"done": true}, {"error": ...}.
type Event struct {
	kind    int
	token   string
	context *ContextInfo
	err     string
}

// TokenEvent wraps one incremental piece of assistant text.
func TokenEvent(text string) Event { return Event{kind: kindToken, token: text} }

// ContextEvent reports the context used for this stream. Emitted at
// most once, before any token.
func ContextEvent(info ContextInfo) Event {
	if info.Sources == nil {
		info.Sources = []string{}
	}
	return Event{kind: kindContext, context: &info}
}

// DoneEvent terminates a successful stream.
func DoneEvent() Event { return Event{kind: kindDone} }

// ErrorEvent terminates a failed stream.
func ErrorEvent(msg string) Event { return Event{kind: kindError, err: msg} }

// Token returns the token text, empty for non-token events.
func (e Event) Token() string { return e.token }

// Context returns the context payload, nil for other events.
func (e Event) Context() *ContextInfo { return e.context }

// Done reports whether this is the terminal success marker.
func (e Event) Done() bool { return e.kind == kindDone }

// Err returns the error text, empty for non-error events.
func (e Event) Err() string { return e.err }

func (e Event) MarshalJSON() ([]byte, error) {
	switch e.kind {
	case kindContext:
		return json.Marshal(struct {
			ContextInfo *ContextInfo `json:"context_info"`
		}{e.context})
	case kindDone:
		return []byte(`{"done":true}`), nil
	case kindError:
		return json.Marshal(struct {
			Error string `json:"error"`
		}{e.err})
	default:
		return json.Marshal(struct {
			Token string `json:"token"`
		}{e.token})
	}
}
