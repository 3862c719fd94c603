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

package vector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ChromemStore implements Store using chromem-go for embedded vector
// storage. Vectors live in memory with optional gzip-compressed file
// persistence, which makes it the right default for a single-user desktop
// runtime.
type ChromemStore struct {
	db          *chromem.DB
	collection  string
	persistPath string
	compress    bool
	mu          sync.RWMutex
	col         *chromem.Collection
}

// ChromemConfig configures the chromem store.
type ChromemConfig struct {
	// Collection is the single collection all chunk embeddings live in.
	Collection string `yaml:"collection,omitempty"`

	// PersistPath enables file persistence when non-empty.
	PersistPath string `yaml:"persist_path,omitempty"`

	// Compress enables gzip compression for the persisted file.
	Compress bool `yaml:"compress,omitempty"`
}

// SetDefaults applies the standard collection name.
func (c *ChromemConfig) SetDefaults() {
	if c.Collection == "" {
		c.Collection = "hearth_chunks"
	}
}

// NewChromemStore creates the store, loading any previously persisted
// database from disk.
func NewChromemStore(cfg ChromemConfig) (*ChromemStore, error) {
	cfg.SetDefaults()

	var db *chromem.DB
	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}

		dbPath := chromemFilePath(cfg.PersistPath, cfg.Compress)
		if _, statErr := os.Stat(dbPath); statErr == nil {
			loaded, err := chromem.NewPersistentDB(dbPath, cfg.Compress)
			if err != nil {
				slog.Warn("Failed to load existing vector database, creating new",
					"path", dbPath,
					"error", err)
				db = chromem.NewDB()
			} else {
				slog.Info("Loaded vector database from file", "path", dbPath)
				db = loaded
			}
		} else {
			db = chromem.NewDB()
			slog.Info("Created new vector database", "path", dbPath)
		}
	} else {
		db = chromem.NewDB()
		slog.Info("Created in-memory vector database (no persistence)")
	}

	return &ChromemStore{
		db:          db,
		collection:  cfg.Collection,
		persistPath: cfg.PersistPath,
		compress:    cfg.Compress,
	}, nil
}

func chromemFilePath(persistPath string, compress bool) string {
	dbPath := persistPath + "/vectors.gob"
	if compress {
		dbPath += ".gz"
	}
	return dbPath
}

// identityEmbed rejects calls: every vector entering this store is
// pre-computed by the embedder package.
func identityEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("embedding function called but vectors should be pre-computed")
}

func (s *ChromemStore) getCollection() (*chromem.Collection, error) {
	s.mu.RLock()
	if s.col != nil {
		col := s.col
		s.mu.RUnlock()
		return col, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.col != nil {
		return s.col, nil
	}

	col, err := s.db.GetOrCreateCollection(s.collection, nil, identityEmbed)
	if err != nil {
		return nil, fmt.Errorf("failed to get/create collection %q: %w", s.collection, err)
	}
	s.col = col
	return col, nil
}

// Upsert adds or replaces records with their pre-computed vectors.
func (s *ChromemStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	col, err := s.getCollection()
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(records))
	for _, r := range records {
		metadata := make(map[string]string, len(r.Payload))
		for k, v := range r.Payload {
			metadata[k] = fmt.Sprint(v)
		}

		docs = append(docs, chromem.Document{
			ID:        r.ID,
			Content:   r.Content,
			Metadata:  metadata,
			Embedding: r.Vector,
		})
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to upsert documents: %w", err)
	}

	if err := s.persist(); err != nil {
		slog.Warn("Failed to persist after upsert", "error", err)
	}
	return nil
}

// Delete removes records by id.
func (s *ChromemStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	col, err := s.getCollection()
	if err != nil {
		return err
	}

	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}

	if err := s.persist(); err != nil {
		slog.Warn("Failed to persist after delete", "error", err)
	}
	return nil
}

// DeleteByFile removes every record belonging to the file.
func (s *ChromemStore) DeleteByFile(ctx context.Context, fileID string) error {
	col, err := s.getCollection()
	if err != nil {
		return err
	}

	if err := col.Delete(ctx, map[string]string{PayloadFileID: fileID}, nil); err != nil {
		return fmt.Errorf("failed to delete by file: %w", err)
	}

	if err := s.persist(); err != nil {
		slog.Warn("Failed to persist after delete", "error", err)
	}
	return nil
}

// Query returns the topK most similar records. chromem filters support a
// single equality per query, so a multi-directory filter fans out to one
// query per directory and merges the hits.
func (s *ChromemStore) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Result, error) {
	col, err := s.getCollection()
	if err != nil {
		return nil, err
	}

	if col.Count() == 0 || topK <= 0 {
		return nil, nil
	}

	var filters []map[string]string
	if filter != nil && len(filter.DirectoryIDs) > 0 {
		for _, dirID := range filter.DirectoryIDs {
			filters = append(filters, map[string]string{PayloadDirectoryID: dirID})
		}
	} else {
		filters = append(filters, nil)
	}

	// chromem rejects nResults above the collection size.
	k := topK
	if count := col.Count(); k > count {
		k = count
	}

	var merged []Result
	for _, where := range filters {
		hits, err := col.QueryEmbedding(ctx, vector, k, where, nil)
		if err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}

		for _, hit := range hits {
			payload := make(map[string]any, len(hit.Metadata))
			for k, v := range hit.Metadata {
				payload[k] = v
			}

			// chromem reports cosine similarity; convert to distance and
			// back to the shared score scale.
			distance := 1.0 - float64(hit.Similarity)
			merged = append(merged, Result{
				ID:      hit.ID,
				Score:   scoreFromDistance(distance),
				Content: hit.Content,
				Payload: payload,
			})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

// Clear drops and recreates the collection.
func (s *ChromemStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(s.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	s.col = nil

	if err := s.persistLocked(); err != nil {
		slog.Warn("Failed to persist after clear", "error", err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	col, err := s.getCollection()
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}

// Close persists the database.
func (s *ChromemStore) Close() error {
	return s.persist()
}

func (s *ChromemStore) persist() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistLocked()
}

func (s *ChromemStore) persistLocked() error {
	if s.persistPath == "" {
		return nil
	}

	dbPath := chromemFilePath(s.persistPath, s.compress)
	//nolint:staticcheck // Using deprecated function for compatibility
	if err := s.db.Export(dbPath, s.compress, ""); err != nil {
		return fmt.Errorf("failed to persist database: %w", err)
	}
	return nil
}

var _ Store = (*ChromemStore)(nil)
