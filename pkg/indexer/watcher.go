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

package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher turns filesystem events under registered directory roots into
// staleness marks the reindexer consumes on its next sweep. Events only
// pull a directory's run forward; the scan itself still decides what
// changed.
type Watcher struct {
	fs     *fsnotify.Watcher
	logger *slog.Logger

	mu    sync.Mutex
	roots map[string]string // absolute root path -> directory id
	stale map[string]bool   // directory id -> needs reindex
}

// NewWatcher creates a filesystem watcher.
func NewWatcher() (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	return &Watcher{
		fs:     fs,
		logger: slog.Default(),
		roots:  make(map[string]string),
		stale:  make(map[string]bool),
	}, nil
}

// Add registers a directory root. Watching is not recursive; events on
// the root are enough to mark the directory stale.
func (w *Watcher) Add(directoryID, path string) error {
	if err := w.fs.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	w.mu.Lock()
	w.roots[path] = directoryID
	w.mu.Unlock()
	return nil
}

// Remove stops watching a directory root.
func (w *Watcher) Remove(path string) {
	_ = w.fs.Remove(path)
	w.mu.Lock()
	delete(w.roots, path)
	w.mu.Unlock()
}

// Run consumes events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fs.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.markStale(event.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Filesystem watcher error", "error", err)
		}
	}
}

// markStale flags the directory whose root is a prefix of path.
func (w *Watcher) markStale(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for root, id := range w.roots {
		if path == root || strings.HasPrefix(path, root+"/") {
			w.stale[id] = true
		}
	}
}

// TakeStale returns and clears the set of stale directory ids.
func (w *Watcher) TakeStale() map[string]bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := w.stale
	w.stale = make(map[string]bool)
	return out
}
