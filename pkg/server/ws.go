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

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/kadirpekel/hearth/pkg/indexer"
)

var upgrader = websocket.Upgrader{
	// The HTTP layer already enforces the origin allowlist; the upgrade
	// request went through the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleIndexStream runs a full index over a WebSocket, pushing one JSON
// message per progress event, then a final complete message with the
// stats, then closing.
func (s *Server) handleIndexStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.deps.Catalog.GetDirectory(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	progress := make(chan indexer.Progress, 64)
	done := make(chan struct{})

	// Sends await completion before the next progress event is consumed.
	go func() {
		defer close(done)
		for p := range progress {
			if err := conn.WriteJSON(p); err != nil {
				return
			}
		}
	}()

	stats, err := s.deps.Indexer.Index(r.Context(), id, indexer.ChannelSink(progress))
	close(progress)
	<-done

	if err != nil {
		_ = conn.WriteJSON(map[string]string{"status": "error", "message": err.Error()})
		return
	}
	_ = conn.WriteJSON(map[string]any{"status": "complete", "stats": stats})
}
