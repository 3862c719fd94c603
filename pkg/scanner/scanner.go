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

// Package scanner walks configured directory roots and yields the file
// records the indexing pipeline works from. Exclude patterns are consulted
// before include patterns, and excluded directories are pruned without
// descending.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/kadirpekel/hearth/pkg/merkle"
)

// DefaultIncludePatterns admit the common text-bearing file types.
var DefaultIncludePatterns = []string{
	"*.txt", "*.md", "*.py", "*.js", "*.json", "*.yaml", "*.yml", "*.csv", "*.log",
}

// DefaultExcludePatterns skip dependency trees, VCS metadata, and build
// output.
var DefaultExcludePatterns = []string{
	"node_modules", ".git", "__pycache__", "*.pyc", ".env", "venv", "build", "dist",
}

// checkInterval is how many files are visited between context checks.
const checkInterval = 100

// FileRecord describes one admitted file. RelativePath is forward-slash
// separated and relative to the scanned root.
type FileRecord struct {
	RelativePath string
	AbsolutePath string
	ContentHash  string
	Size         int64
	ModTime      time.Time
}

// Scanner applies include/exclude glob patterns while walking a root.
type Scanner struct {
	includes []string
	excludes []string
}

// New creates a scanner. Empty pattern lists fall back to the defaults.
func New(includes, excludes []string) *Scanner {
	if len(includes) == 0 {
		includes = DefaultIncludePatterns
	}
	if excludes == nil {
		excludes = DefaultExcludePatterns
	}
	return &Scanner{includes: includes, excludes: excludes}
}

// Scan walks root and returns every admitted file with its content hash.
// The walk checks for cancellation every 100 files so long scans stay
// responsive to shutdown.
func (s *Scanner) Scan(ctx context.Context, root string) ([]FileRecord, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
	}

	var records []FileRecord
	visited := 0

	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable entries are skipped, not fatal.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if p != absRoot && s.matchesExclude(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}

		visited++
		if visited%checkInterval == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if s.excluded(rel, d.Name()) {
			return nil
		}
		if !s.included(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		records = append(records, FileRecord{
			RelativePath: rel,
			AbsolutePath: p,
			ContentHash:  merkle.ContentHash(p),
			Size:         info.Size(),
			ModTime:      info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// excluded reports whether the filename or any path component matches an
// exclude pattern.
func (s *Scanner) excluded(relPath, name string) bool {
	if s.matchesExclude(name) {
		return true
	}
	for _, part := range strings.Split(path.Dir(relPath), "/") {
		if part == "." || part == "" {
			continue
		}
		if s.matchesExclude(part) {
			return true
		}
	}
	return false
}

func (s *Scanner) matchesExclude(name string) bool {
	for _, pattern := range s.excludes {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (s *Scanner) included(name string) bool {
	for _, pattern := range s.includes {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
