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
	"time"

	"github.com/google/uuid"
)

// Embedding is the catalog-side record of one stored chunk vector.
// vector_id is the id of the point in the vector store.
type Embedding struct {
	ID         string    `json:"id"`
	FileID     string    `json:"file_id"`
	ChunkIndex int       `json:"chunk_index"`
	StartChar  int       `json:"start_char"`
	EndChar    int       `json:"end_char"`
	ChunkHash  string    `json:"chunk_hash"`
	VectorID   string    `json:"vector_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// InsertEmbeddings records chunk metadata for one file in a single
// transaction. IDs are assigned when blank.
func (s *Store) InsertEmbeddings(ctx context.Context, embeddings []Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		insert := s.bind(`
INSERT INTO embeddings (id, file_id, chunk_index, start_char, end_char, chunk_hash, vector_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		created := now()
		for _, e := range embeddings {
			id := e.ID
			if id == "" {
				id = uuid.NewString()
			}
			_, err := tx.ExecContext(ctx, insert,
				id, e.FileID, e.ChunkIndex, e.StartChar, e.EndChar, e.ChunkHash, e.VectorID, created)
			if err != nil {
				return fmt.Errorf("failed to insert embedding for chunk %d: %w", e.ChunkIndex, err)
			}
		}
		return nil
	})
}

// DeleteEmbeddingsByFile removes the chunk records for a file and
// returns the vector ids so the caller can purge the vector store.
func (s *Store) DeleteEmbeddingsByFile(ctx context.Context, fileID string) ([]string, error) {
	rows, err := s.query(ctx, `SELECT vector_id FROM embeddings WHERE file_id = ?`, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	defer rows.Close()

	var vectorIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan vector id: %w", err)
		}
		vectorIDs = append(vectorIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := s.exec(ctx, `DELETE FROM embeddings WHERE file_id = ?`, fileID); err != nil {
		return vectorIDs, fmt.Errorf("failed to delete embeddings: %w", err)
	}
	return vectorIDs, nil
}

// CountEmbeddings returns the total number of stored chunk records.
func (s *Store) CountEmbeddings(ctx context.Context) (int, error) {
	var count int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return count, nil
}
