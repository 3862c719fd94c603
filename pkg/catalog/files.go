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

// File is one tracked file inside a directory. content_hash covers the
// raw bytes; merkle_hash is the leaf hash derived from path and content.
type File struct {
	ID           string     `json:"id"`
	DirectoryID  string     `json:"directory_id"`
	RelativePath string     `json:"relative_path"`
	ContentHash  string     `json:"content_hash"`
	MerkleHash   string     `json:"merkle_hash"`
	Size         int64      `json:"file_size"`
	ModifiedAt   time.Time  `json:"modified_at"`
	IsIndexed    bool       `json:"is_indexed"`
	IndexedAt    *time.Time `json:"indexed_at,omitempty"`
	ChunkCount   int        `json:"chunk_count"`
}

const fileColumns = `id, directory_id, relative_path, content_hash, merkle_hash, file_size, modified_at, is_indexed, indexed_at, chunk_count`

// UpsertFile inserts a file row, or updates the hashes and resets the
// indexed flag when the row already exists and the content changed.
func (s *Store) UpsertFile(ctx context.Context, f File) (*File, error) {
	existing, err := s.GetFileByPath(ctx, f.DirectoryID, f.RelativePath)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}

	if existing != nil {
		f.ID = existing.ID
		if existing.ContentHash == f.ContentHash {
			return existing, nil
		}
		_, err = s.exec(ctx, `
UPDATE files SET content_hash = ?, merkle_hash = ?, file_size = ?, modified_at = ?,
       is_indexed = FALSE, indexed_at = NULL, chunk_count = 0
WHERE id = ?`,
			f.ContentHash, f.MerkleHash, f.Size, f.ModifiedAt.UTC(), f.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to update file: %w", err)
		}
		f.IsIndexed = false
		f.IndexedAt = nil
		f.ChunkCount = 0
		return &f, nil
	}

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	_, err = s.exec(ctx, `
INSERT INTO files (id, directory_id, relative_path, content_hash, merkle_hash, file_size, modified_at, is_indexed, indexed_at, chunk_count)
VALUES (?, ?, ?, ?, ?, ?, ?, FALSE, NULL, 0)`,
		f.ID, f.DirectoryID, f.RelativePath, f.ContentHash, f.MerkleHash, f.Size, f.ModifiedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to insert file: %w", err)
	}
	f.IsIndexed = false
	return &f, nil
}

// GetFile fetches one file by id.
func (s *Store) GetFile(ctx context.Context, id string) (*File, error) {
	row := s.queryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "file", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, nil
}

// GetFileByPath fetches one file by directory and relative path.
func (s *Store) GetFileByPath(ctx context.Context, directoryID, relativePath string) (*File, error) {
	row := s.queryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE directory_id = ? AND relative_path = ?`,
		directoryID, relativePath)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "file", ID: relativePath}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, nil
}

// ListFiles returns all files in a directory.
func (s *Store) ListFiles(ctx context.Context, directoryID string) ([]File, error) {
	rows, err := s.query(ctx, `SELECT `+fileColumns+` FROM files WHERE directory_id = ? ORDER BY relative_path`,
		directoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()
	return collectFiles(rows)
}

// FilesToIndex returns unindexed files in a directory, smallest first so
// quick wins land early and progress is visible sooner.
func (s *Store) FilesToIndex(ctx context.Context, directoryID string) ([]File, error) {
	rows, err := s.query(ctx, `
SELECT `+fileColumns+` FROM files
WHERE directory_id = ? AND is_indexed = FALSE
ORDER BY file_size ASC`, directoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files to index: %w", err)
	}
	defer rows.Close()
	return collectFiles(rows)
}

// MarkFileIndexed records a successful index of one file.
func (s *Store) MarkFileIndexed(ctx context.Context, id string, chunkCount int) error {
	_, err := s.exec(ctx, `
UPDATE files SET is_indexed = TRUE, indexed_at = ?, chunk_count = ? WHERE id = ?`,
		now(), chunkCount, id)
	if err != nil {
		return fmt.Errorf("failed to mark file indexed: %w", err)
	}
	return nil
}

// DeleteFile removes a file row; embeddings cascade.
func (s *Store) DeleteFile(ctx context.Context, id string) error {
	_, err := s.exec(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// DeleteFilesNotIn removes files in a directory whose relative path is
// absent from keep. Returns the removed rows so callers can purge their
// vectors. An empty keep set removes everything.
func (s *Store) DeleteFilesNotIn(ctx context.Context, directoryID string, keep map[string]bool) ([]File, error) {
	all, err := s.ListFiles(ctx, directoryID)
	if err != nil {
		return nil, err
	}

	var removed []File
	for _, f := range all {
		if keep[f.RelativePath] {
			continue
		}
		if err := s.DeleteFile(ctx, f.ID); err != nil {
			return removed, err
		}
		removed = append(removed, f)
	}
	return removed, nil
}

func scanFile(row rowScanner) (*File, error) {
	var f File
	var indexedAt sql.NullTime

	err := row.Scan(&f.ID, &f.DirectoryID, &f.RelativePath, &f.ContentHash, &f.MerkleHash,
		&f.Size, &f.ModifiedAt, &f.IsIndexed, &indexedAt, &f.ChunkCount)
	if err != nil {
		return nil, err
	}
	if indexedAt.Valid {
		t := indexedAt.Time
		f.IndexedAt = &t
	}
	return &f, nil
}

func collectFiles(rows *sql.Rows) ([]File, error) {
	var files []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}
