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

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/hearth/pkg/catalog"
	"github.com/kadirpekel/hearth/pkg/tools"
)

// handleListTools returns every registered tool with its schema.
func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	infos := s.deps.Registry.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"tools": infos,
		"total": len(infos),
	})
}

// handleCreateTool validates and registers a user-defined tool. Invalid
// definitions are rejected with every offense listed; warnings do not
// block.
func (s *Server) handleCreateTool(w http.ResponseWriter, r *http.Request) {
	var def tools.Definition
	if err := decodeBody(r, &def); err != nil {
		writeBadRequest(w, "%v", err)
		return
	}

	result := tools.Validate(def)
	if !result.Valid {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "tool definition is invalid",
			"validation": result,
		})
		return
	}

	tool, err := tools.NewSubprocessTool(def)
	if err != nil {
		writeBadRequest(w, "%v", err)
		return
	}

	params, err := json.Marshal(def.Parameters)
	if err != nil {
		writeError(w, err)
		return
	}
	stored, err := s.deps.Catalog.SaveUserTool(r.Context(), catalog.UserTool{
		Name:        def.Name,
		Description: def.Description,
		Parameters:  string(params),
		Command:     def.Command,
		IsEnabled:   true,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.deps.Registry.Replace(tool)

	writeJSON(w, http.StatusCreated, map[string]any{
		"tool":       stored,
		"validation": result,
	})
}

// handleDeleteTool unregisters a user-defined tool. Built-ins cannot be
// deleted.
func (s *Server) handleDeleteTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if tool, ok := s.deps.Registry.Get(name); ok && tool.GetInfo().Builtin {
		writeBadRequest(w, "cannot delete built-in tool %q", name)
		return
	}

	if err := s.deps.Catalog.DeleteUserTool(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	s.deps.Registry.Unregister(name)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// toolsRequest is the /tools/execute and /tools/stream payload.
type toolsRequest struct {
	Input          string `json:"input"`
	ConversationID string `json:"conversation_id"`
}

// handleToolsExecute runs the tool state machine to completion.
func (s *Server) handleToolsExecute(w http.ResponseWriter, r *http.Request) {
	if s.deps.Machine == nil {
		writeUnavailable(w, "no language model is active")
		return
	}

	var req toolsRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "%v", err)
		return
	}

	result, err := s.deps.Machine.Run(r.Context(), req.Input, req.ConversationID)
	if err != nil {
		writeBadRequest(w, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleToolsStream streams machine events as newline-delimited JSON.
func (s *Server) handleToolsStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Machine == nil {
		writeUnavailable(w, "no language model is active")
		return
	}

	var req toolsRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "%v", err)
		return
	}

	events, err := s.deps.Machine.RunStream(r.Context(), req.Input, req.ConversationID)
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
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
