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
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/hearth/pkg/catalog"
	"github.com/kadirpekel/hearth/pkg/embedder"
)

// handleCreateDirectory registers a directory for indexing.
func (s *Server) handleCreateDirectory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path                  string   `json:"path"`
		FilePatterns          []string `json:"file_patterns"`
		ExcludePatterns       []string `json:"exclude_patterns"`
		IndexFrequencyMinutes int      `json:"index_frequency_minutes"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "%v", err)
		return
	}
	if req.Path == "" {
		writeBadRequest(w, "path is required")
		return
	}
	if info, err := os.Stat(req.Path); err != nil || !info.IsDir() {
		writeBadRequest(w, "path is not a readable directory: %s", req.Path)
		return
	}

	dir, err := s.deps.Catalog.CreateDirectory(r.Context(), catalog.Directory{
		Path:                  req.Path,
		IncludePatterns:       req.FilePatterns,
		ExcludePatterns:       req.ExcludePatterns,
		IndexFrequencyMinutes: req.IndexFrequencyMinutes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dir)
}

// handleListDirectories lists active directories with per-directory
// stats.
func (s *Server) handleListDirectories(w http.ResponseWriter, r *http.Request) {
	dirs, err := s.deps.Catalog.ListDirectories(r.Context(), true)
	if err != nil {
		writeError(w, err)
		return
	}

	type directoryWithStats struct {
		catalog.Directory
		Stats *catalog.DirectoryStats `json:"stats"`
	}
	out := make([]directoryWithStats, 0, len(dirs))
	for _, dir := range dirs {
		stats, err := s.deps.Catalog.GetDirectoryStats(r.Context(), dir.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, directoryWithStats{Directory: dir, Stats: stats})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"directories": out,
		"total":       len(out),
	})
}

// handleDeleteDirectory soft-deletes a directory registration.
func (s *Server) handleDeleteDirectory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Catalog.DeactivateDirectory(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleScanDirectory runs change detection and returns the counts.
func (s *Server) handleScanDirectory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := s.deps.Indexer.Scan(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleIndexDirectory runs a full index pass and returns its stats.
func (s *Server) handleIndexDirectory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stats, err := s.deps.Indexer.Index(r.Context(), id, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleLinkContext attaches a directory to a conversation.
func (s *Server) handleLinkContext(w http.ResponseWriter, r *http.Request) {
	cid := chi.URLParam(r, "cid")
	var req struct {
		DirectoryID string `json:"directory_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "%v", err)
		return
	}
	if req.DirectoryID == "" {
		writeBadRequest(w, "directory_id is required")
		return
	}

	link, err := s.deps.Catalog.LinkContext(r.Context(), cid, req.DirectoryID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

// handleListContexts lists the directories linked to a conversation.
func (s *Server) handleListContexts(w http.ResponseWriter, r *http.Request) {
	cid := chi.URLParam(r, "cid")
	ids, err := s.deps.Catalog.ActiveContextDirectories(r.Context(), cid)
	if err != nil {
		writeError(w, err)
		return
	}

	dirs := make([]catalog.Directory, 0, len(ids))
	for _, id := range ids {
		dir, err := s.deps.Catalog.GetDirectory(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		dirs = append(dirs, *dir)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"directories": dirs,
		"total":       len(dirs),
	})
}

// handleUnlinkContext detaches a directory from a conversation.
func (s *Server) handleUnlinkContext(w http.ResponseWriter, r *http.Request) {
	cid := chi.URLParam(r, "cid")
	did := chi.URLParam(r, "did")
	if err := s.deps.Catalog.UnlinkContext(r.Context(), cid, did); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unlinked"})
}

// handleRetrieve runs one retrieval query and returns ranked chunks.
func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query          string   `json:"query"`
		ConversationID string   `json:"conversation_id"`
		DirectoryIDs   []string `json:"directory_ids"`
		TopK           int      `json:"top_k"`
		MinScore       *float64 `json:"min_score"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "%v", err)
		return
	}
	if req.Query == "" {
		writeBadRequest(w, "query is required")
		return
	}

	dirs, err := s.deps.Retriever.ResolveDirectories(r.Context(), req.ConversationID, req.DirectoryIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(dirs) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"results": []any{}, "total": 0})
		return
	}

	results, err := s.deps.Retriever.RetrieveWithOptions(r.Context(), req.Query, dirs, req.TopK, req.MinScore)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"total":   len(results),
	})
}

// handleClearIndex wipes all indexed state: the vector collection and
// every file, embedding, merkle node, and context link. Directory
// registrations survive.
func (s *Server) handleClearIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Catalog.ClearIndex(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	if err := s.deps.Vectors.Clear(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleIndexStats returns catalog-wide aggregate counts.
func (s *Server) handleIndexStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Catalog.GetIndexStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleGetSettings returns the retrieval settings.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.deps.Catalog.GetSettings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleUpdateSettings stores new settings. Changing the embedding model
// invalidates every stored vector: the collection is cleared, files are
// reset to unindexed, and the embedder reloads in place.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	current, err := s.deps.Catalog.GetSettings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	var req catalog.Settings
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "%v", err)
		return
	}

	updated, err := s.deps.Catalog.UpdateSettings(r.Context(), req)
	if err != nil {
		writeBadRequest(w, "%v", err)
		return
	}

	if updated.EmbeddingModel != current.EmbeddingModel {
		s.logger.Info("Embedding model changed, invalidating index",
			"old", current.EmbeddingModel, "new", updated.EmbeddingModel)
		if err := s.deps.Vectors.Clear(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		if err := s.deps.Catalog.ResetIndexedFlags(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		if reloadable, ok := s.deps.Embedder.(embedder.Reloadable); ok {
			reloadable.Reload(updated.EmbeddingModel)
		}
	}
	writeJSON(w, http.StatusOK, updated)
}
