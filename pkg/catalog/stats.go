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

package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// IndexStats are catalog-wide aggregate counts.
type IndexStats struct {
	TotalDirectories           int `json:"total_directories"`
	TotalFiles                 int `json:"total_files"`
	IndexedFiles               int `json:"indexed_files"`
	TotalChunks                int `json:"total_chunks"`
	ActiveConversationContexts int `json:"active_conversation_contexts"`
}

// GetIndexStats aggregates counts across the whole catalog.
func (s *Store) GetIndexStats(ctx context.Context) (*IndexStats, error) {
	stats := &IndexStats{}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM directories WHERE is_active = TRUE`, &stats.TotalDirectories},
		{`SELECT COUNT(*) FROM files`, &stats.TotalFiles},
		{`SELECT COUNT(*) FROM files WHERE is_indexed = TRUE`, &stats.IndexedFiles},
		{`SELECT COUNT(*) FROM embeddings`, &stats.TotalChunks},
		{`SELECT COUNT(*) FROM conversation_contexts WHERE is_active = TRUE`, &stats.ActiveConversationContexts},
	}

	for _, c := range counts {
		if err := s.queryRow(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to get index stats: %w", err)
		}
	}
	return stats, nil
}

// ClearIndex wipes all indexing state while keeping directory
// registrations, conversations, tools, and settings. Directories are
// reset to never-indexed so the next run rebuilds from scratch.
func (s *Store) ClearIndex(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		statements := []string{
			`DELETE FROM embeddings`,
			`DELETE FROM merkle_nodes`,
			`DELETE FROM files`,
			`DELETE FROM conversation_contexts`,
			`UPDATE directories SET last_indexed_at = NULL`,
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to clear index: %w", err)
			}
		}
		return nil
	})
}

// ResetIndexedFlags marks every file as needing reindexing and drops
// chunk bookkeeping. Used when the embedding model changes: stored
// vectors are no longer comparable, so files re-embed on the next run.
func (s *Store) ResetIndexedFlags(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		statements := []string{
			`DELETE FROM embeddings`,
			`UPDATE files SET is_indexed = FALSE, chunk_count = 0`,
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to reset indexed flags: %w", err)
			}
		}
		return nil
	})
}
