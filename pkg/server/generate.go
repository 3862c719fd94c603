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

package server

import (
	"encoding/json"
	"net/http"

	"github.com/kadirpekel/hearth/pkg/generate"
)

// generateRequest is the /generate and /generate-sse payload.
type generateRequest struct {
	Prompt         string   `json:"prompt"`
	ConversationID string   `json:"conversation_id"`
	DirectoryIDs   []string `json:"directory_ids"`
	UseMemory      *bool    `json:"use_enhanced_memory"`
}

func (req generateRequest) toService() generate.Request {
	useMemory := true
	if req.UseMemory != nil {
		useMemory = *req.UseMemory
	}
	return generate.Request{
		Prompt:         req.Prompt,
		ConversationID: req.ConversationID,
		DirectoryIDs:   req.DirectoryIDs,
		UseMemory:      useMemory,
	}
}

// handleGenerate streams newline-delimited JSON events. Each event is
// flushed as it arrives so the framework cannot coalesce tokens.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Generator == nil {
		writeUnavailable(w, "no language model is active")
		return
	}

	var req generateRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "%v", err)
		return
	}

	events, err := s.deps.Generator.Stream(r.Context(), req.toService())
	if err != nil {
		writeBadRequest(w, "%v", err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			// Client went away; the context cancellation stops the model.
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// handleGenerateSSE streams the same events in Server-Sent-Events
// framing with explicit start/done/error envelopes.
func (s *Server) handleGenerateSSE(w http.ResponseWriter, r *http.Request) {
	if s.deps.Generator == nil {
		writeUnavailable(w, "no language model is active")
		return
	}

	var req generateRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "%v", err)
		return
	}

	events, err := s.deps.Generator.Stream(r.Context(), req.toService())
	if err != nil {
		writeBadRequest(w, "%v", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	writeSSE(w, flusher, "start", []byte(`{}`))

	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		switch {
		case ev.Done():
			writeSSE(w, flusher, "done", payload)
		case ev.Err() != "":
			writeSSE(w, flusher, "error", payload)
		default:
			writeSSE(w, flusher, "message", payload)
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, data []byte) {
	_, _ = w.Write([]byte("event: " + event + "\ndata: " + string(data) + "\n\n"))
	if flusher != nil {
		flusher.Flush()
	}
}

// handleSaveMessage appends one message to a conversation.
func (s *Server) handleSaveMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConversationID string `json:"conversation_id"`
		Role           string `json:"role"`
		Content        string `json:"content"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "%v", err)
		return
	}
	if req.ConversationID == "" || req.Role == "" || req.Content == "" {
		writeBadRequest(w, "conversation_id, role, and content are required")
		return
	}
	if req.Role != "user" && req.Role != "assistant" {
		writeBadRequest(w, "invalid message role: %s", req.Role)
		return
	}

	msg, err := s.deps.Catalog.AppendMessage(r.Context(), req.ConversationID, req.Role, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "saved",
		"message_id": msg.ID,
	})
}
