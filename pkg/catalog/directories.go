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
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Directory is a registered indexing root. Removal is a soft delete: the
// row stays for history, is_active flips to false.
type Directory struct {
	ID                    string     `json:"id"`
	Path                  string     `json:"path"`
	IsActive              bool       `json:"is_active"`
	IncludePatterns       []string   `json:"include_patterns"`
	ExcludePatterns       []string   `json:"exclude_patterns"`
	IndexFrequencyMinutes int        `json:"index_frequency_minutes"`
	LastIndexedAt         *time.Time `json:"last_indexed_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

// DirectoryStats are per-directory aggregate counts.
type DirectoryStats struct {
	TotalFiles   int `json:"total_files"`
	IndexedFiles int `json:"indexed_files"`
	TotalChunks  int `json:"total_chunks"`
}

// CreateDirectory registers a directory. The path is canonicalized to an
// absolute path. Registering an already-known path returns the existing
// row (reactivated if needed) so the operation is idempotent.
func (s *Store) CreateDirectory(ctx context.Context, dir Directory) (*Directory, error) {
	if dir.Path == "" {
		return nil, fmt.Errorf("directory path is required")
	}

	absPath, err := filepath.Abs(dir.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize path %s: %w", dir.Path, err)
	}
	dir.Path = absPath

	if existing, err := s.GetDirectoryByPath(ctx, dir.Path); err == nil {
		if !existing.IsActive {
			if _, err := s.exec(ctx, `UPDATE directories SET is_active = TRUE WHERE id = ?`, existing.ID); err != nil {
				return nil, fmt.Errorf("failed to reactivate directory: %w", err)
			}
			existing.IsActive = true
		}
		return existing, nil
	}

	if dir.ID == "" {
		dir.ID = uuid.NewString()
	}
	if dir.IndexFrequencyMinutes <= 0 {
		dir.IndexFrequencyMinutes = 60
	}
	dir.IsActive = true
	dir.CreatedAt = now()

	include, err := json.Marshal(dir.IncludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to encode include patterns: %w", err)
	}
	exclude, err := json.Marshal(dir.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to encode exclude patterns: %w", err)
	}

	_, err = s.exec(ctx, `
INSERT INTO directories (id, path, is_active, include_patterns, exclude_patterns, index_frequency_minutes, last_indexed_at, created_at)
VALUES (?, ?, TRUE, ?, ?, ?, NULL, ?)`,
		dir.ID, dir.Path, string(include), string(exclude), dir.IndexFrequencyMinutes, dir.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert directory: %w", err)
	}

	return &dir, nil
}

// GetDirectory fetches one directory by id.
func (s *Store) GetDirectory(ctx context.Context, id string) (*Directory, error) {
	row := s.queryRow(ctx, `
SELECT id, path, is_active, include_patterns, exclude_patterns, index_frequency_minutes, last_indexed_at, created_at
FROM directories WHERE id = ?`, id)

	dir, err := scanDirectory(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "directory", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get directory: %w", err)
	}
	return dir, nil
}

// GetDirectoryByPath fetches one directory by canonical path.
func (s *Store) GetDirectoryByPath(ctx context.Context, path string) (*Directory, error) {
	row := s.queryRow(ctx, `
SELECT id, path, is_active, include_patterns, exclude_patterns, index_frequency_minutes, last_indexed_at, created_at
FROM directories WHERE path = ?`, path)

	dir, err := scanDirectory(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "directory", ID: path}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get directory: %w", err)
	}
	return dir, nil
}

// ListDirectories returns directories, optionally only active ones, newest
// first.
func (s *Store) ListDirectories(ctx context.Context, activeOnly bool) ([]Directory, error) {
	query := `
SELECT id, path, is_active, include_patterns, exclude_patterns, index_frequency_minutes, last_indexed_at, created_at
FROM directories`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list directories: %w", err)
	}
	defer rows.Close()

	var dirs []Directory
	for rows.Next() {
		dir, err := scanDirectory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan directory: %w", err)
		}
		dirs = append(dirs, *dir)
	}
	return dirs, rows.Err()
}

// DeactivateDirectory soft-deletes a directory.
func (s *Store) DeactivateDirectory(ctx context.Context, id string) error {
	result, err := s.exec(ctx, `UPDATE directories SET is_active = FALSE WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate directory: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return &NotFoundError{Kind: "directory", ID: id}
	}
	return nil
}

// TouchDirectoryIndexed records a completed index run.
func (s *Store) TouchDirectoryIndexed(ctx context.Context, id string, at time.Time) error {
	_, err := s.exec(ctx, `UPDATE directories SET last_indexed_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update last_indexed_at: %w", err)
	}
	return nil
}

// GetDirectoryStats aggregates file and chunk counts for one directory.
func (s *Store) GetDirectoryStats(ctx context.Context, id string) (*DirectoryStats, error) {
	stats := &DirectoryStats{}
	err := s.queryRow(ctx, `
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN is_indexed THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(chunk_count), 0)
FROM files WHERE directory_id = ?`, id).Scan(&stats.TotalFiles, &stats.IndexedFiles, &stats.TotalChunks)
	if err != nil {
		return nil, fmt.Errorf("failed to get directory stats: %w", err)
	}
	return stats, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDirectory(row rowScanner) (*Directory, error) {
	var dir Directory
	var include, exclude string
	var lastIndexed sql.NullTime

	err := row.Scan(&dir.ID, &dir.Path, &dir.IsActive, &include, &exclude,
		&dir.IndexFrequencyMinutes, &lastIndexed, &dir.CreatedAt)
	if err != nil {
		return nil, err
	}

	if lastIndexed.Valid {
		t := lastIndexed.Time
		dir.LastIndexedAt = &t
	}
	if err := json.Unmarshal([]byte(include), &dir.IncludePatterns); err != nil {
		return nil, fmt.Errorf("failed to decode include patterns: %w", err)
	}
	if err := json.Unmarshal([]byte(exclude), &dir.ExcludePatterns); err != nil {
		return nil, fmt.Errorf("failed to decode exclude patterns: %w", err)
	}
	return &dir, nil
}
