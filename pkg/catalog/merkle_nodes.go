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

	"github.com/google/uuid"
)

// MerkleNode is one persisted node of a directory's Merkle tree. The
// root node has an empty node_path and depth 0.
type MerkleNode struct {
	ID          string `json:"id"`
	DirectoryID string `json:"directory_id"`
	NodePath    string `json:"node_path"`
	NodeHash    string `json:"node_hash"`
	IsLeaf      bool   `json:"is_leaf"`
	ParentPath  string `json:"parent_path"`
	Depth       int    `json:"depth"`
}

// ReplaceMerkleTree atomically swaps the stored tree for a directory.
func (s *Store) ReplaceMerkleTree(ctx context.Context, directoryID string, nodes []MerkleNode) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.bind(`DELETE FROM merkle_nodes WHERE directory_id = ?`), directoryID); err != nil {
			return fmt.Errorf("failed to clear merkle nodes: %w", err)
		}

		insert := s.bind(`
INSERT INTO merkle_nodes (id, directory_id, node_path, node_hash, is_leaf, parent_path, depth)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
		for _, n := range nodes {
			id := n.ID
			if id == "" {
				id = uuid.NewString()
			}
			_, err := tx.ExecContext(ctx, insert,
				id, directoryID, n.NodePath, n.NodeHash, n.IsLeaf, n.ParentPath, n.Depth)
			if err != nil {
				return fmt.Errorf("failed to insert merkle node %s: %w", n.NodePath, err)
			}
		}
		return nil
	})
}

// GetMerkleRoot returns the stored root hash for a directory, or empty
// string when no tree has been stored yet.
func (s *Store) GetMerkleRoot(ctx context.Context, directoryID string) (string, error) {
	var hash string
	err := s.queryRow(ctx, `
SELECT node_hash FROM merkle_nodes WHERE directory_id = ? AND depth = 0`, directoryID).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get merkle root: %w", err)
	}
	return hash, nil
}

// ListMerkleNodes returns all stored nodes for a directory ordered by path.
func (s *Store) ListMerkleNodes(ctx context.Context, directoryID string) ([]MerkleNode, error) {
	rows, err := s.query(ctx, `
SELECT id, directory_id, node_path, node_hash, is_leaf, parent_path, depth
FROM merkle_nodes WHERE directory_id = ? ORDER BY node_path`, directoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list merkle nodes: %w", err)
	}
	defer rows.Close()

	var nodes []MerkleNode
	for rows.Next() {
		var n MerkleNode
		if err := rows.Scan(&n.ID, &n.DirectoryID, &n.NodePath, &n.NodeHash, &n.IsLeaf, &n.ParentPath, &n.Depth); err != nil {
			return nil, fmt.Errorf("failed to scan merkle node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
