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
	"log/slog"
	"time"

	"github.com/kadirpekel/hearth/pkg/catalog"
)

// Reindexer periodically reindexes directories whose last run is older
// than their configured cadence. A filesystem watcher can mark
// directories stale to pull their next run forward.
type Reindexer struct {
	service *Service
	catalog *catalog.Store
	watcher *Watcher
	sweep   time.Duration
	backoff time.Duration
	logger  *slog.Logger
}

// NewReindexer creates a reindexer. watcher may be nil.
func NewReindexer(service *Service, cat *catalog.Store, watcher *Watcher, sweep, backoff time.Duration) *Reindexer {
	if sweep <= 0 {
		sweep = 5 * time.Minute
	}
	if backoff <= 0 {
		backoff = time.Minute
	}
	return &Reindexer{
		service: service,
		catalog: cat,
		watcher: watcher,
		sweep:   sweep,
		backoff: backoff,
		logger:  slog.Default(),
	}
}

// Run sweeps until ctx is cancelled. Errors back the loop off and are
// never fatal. Cancellation is honored between directories, not
// mid-file.
func (r *Reindexer) Run(ctx context.Context) {
	r.logger.Info("Background reindexer started", "sweep", r.sweep)

	for {
		if err := r.sweepOnce(ctx); err != nil {
			if ctx.Err() != nil {
				r.logger.Info("Background reindexer stopped")
				return
			}
			r.logger.Error("Reindex sweep failed", "error", err)
			select {
			case <-time.After(r.backoff):
			case <-ctx.Done():
				r.logger.Info("Background reindexer stopped")
				return
			}
			continue
		}

		select {
		case <-time.After(r.sweep):
		case <-ctx.Done():
			r.logger.Info("Background reindexer stopped")
			return
		}
	}
}

// sweepOnce reindexes every directory that is due.
func (r *Reindexer) sweepOnce(ctx context.Context) error {
	dirs, err := r.catalog.ListDirectories(ctx, true)
	if err != nil {
		return err
	}

	var stale map[string]bool
	if r.watcher != nil {
		stale = r.watcher.TakeStale()
	}

	for _, dir := range dirs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !stale[dir.ID] && !due(dir) {
			continue
		}

		r.logger.Info("Reindexing stale directory", "path", dir.Path)
		if _, err := r.service.Index(ctx, dir.ID, nil); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// One failing directory never blocks the rest of the sweep.
			r.logger.Error("Reindex failed", "path", dir.Path, "error", err)
		}
	}
	return nil
}

func due(dir catalog.Directory) bool {
	if dir.LastIndexedAt == nil {
		return true
	}
	cadence := time.Duration(dir.IndexFrequencyMinutes) * time.Minute
	return time.Since(*dir.LastIndexedAt) >= cadence
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
