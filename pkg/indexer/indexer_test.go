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
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/hearth/pkg/catalog"
	"github.com/kadirpekel/hearth/pkg/vector"
)

// stubEmbedder derives a deterministic vector from the text hash.
type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	return []float32{float32(sum[0]), float32(sum[1]), float32(sum[2]), float32(sum[3])}, nil
}

func (e stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

func (stubEmbedder) Dimension() int { return 4 }
func (stubEmbedder) Model() string  { return "stub" }
func (stubEmbedder) Close() error   { return nil }

// memStore is an in-memory vector.Store for pipeline tests.
type memStore struct {
	mu      sync.Mutex
	records map[string]vector.Record
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]vector.Record)}
}

func (m *memStore) Upsert(_ context.Context, records []vector.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.ID] = r
	}
	return nil
}

func (m *memStore) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.records, id)
	}
	return nil
}

func (m *memStore) DeleteByFile(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.records {
		if r.Payload[vector.PayloadFileID] == fileID {
			delete(m.records, id)
		}
	}
	return nil
}

func (m *memStore) Query(_ context.Context, _ []float32, topK int, _ *vector.Filter) ([]vector.Result, error) {
	return nil, nil
}

func (m *memStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]vector.Record)
	return nil
}

func (m *memStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) chunkHashes() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	hashes := make(map[string]bool)
	for _, r := range m.records {
		if h, ok := r.Payload[vector.PayloadChunkHash].(string); ok {
			hashes[h] = true
		}
	}
	return hashes
}

func newTestCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "catalog.db") + "?_foreign_keys=on"
	s, err := catalog.Open(catalog.Config{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupTinyTree(t *testing.T) (root string, cat *catalog.Store, store *memStore, svc *Service, dirID string) {
	t.Helper()
	root = t.TempDir()
	writeFile(t, root, "a.md", "hello")
	writeFile(t, root, "b.py", "print(1)")
	writeFile(t, root, "sub/c.txt", "x")

	cat = newTestCatalog(t)
	store = newMemStore()
	svc = New(cat, store, stubEmbedder{}, 2)

	ctx := context.Background()
	dir, err := cat.CreateDirectory(ctx, catalog.Directory{
		Path:            root,
		IncludePatterns: []string{"*.md", "*.py", "*.txt"},
	})
	require.NoError(t, err)

	_, err = cat.UpdateSettings(ctx, catalog.Settings{
		ChunkSize: 1000, ChunkOverlap: 1, EmbeddingModel: "stub", TopK: 5, MinScore: 0,
	})
	require.NoError(t, err)
	return root, cat, store, svc, dir.ID
}

func TestIndexTinyTree(t *testing.T) {
	_, cat, store, svc, dirID := setupTinyTree(t)
	ctx := context.Background()

	stats, err := svc.Index(ctx, dirID, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalFiles)
	assert.Equal(t, 3, stats.IndexedFiles)
	assert.Equal(t, 3, stats.TotalChunks)
	assert.Empty(t, stats.Errors)
	assert.NotEmpty(t, stats.MerkleRoot)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	agg, err := cat.GetIndexStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, agg.TotalDirectories)
	assert.Equal(t, 3, agg.TotalFiles)
	assert.Equal(t, 3, agg.IndexedFiles)
	assert.Equal(t, 3, agg.TotalChunks)

	dir, err := cat.GetDirectory(ctx, dirID)
	require.NoError(t, err)
	assert.NotNil(t, dir.LastIndexedAt)
}

func TestIndexIsIdempotent(t *testing.T) {
	_, cat, store, svc, dirID := setupTinyTree(t)
	ctx := context.Background()

	_, err := svc.Index(ctx, dirID, nil)
	require.NoError(t, err)
	rootBefore, err := cat.GetMerkleRoot(ctx, dirID)
	require.NoError(t, err)

	scan, err := svc.Scan(ctx, dirID)
	require.NoError(t, err)
	assert.Equal(t, &ScanResult{Unchanged: 3}, scan)

	stats, err := svc.Index(ctx, dirID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.IndexedFiles)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	rootAfter, err := cat.GetMerkleRoot(ctx, dirID)
	require.NoError(t, err)
	assert.Equal(t, rootBefore, rootAfter)
}

func TestModifiedFileReplacesEmbeddings(t *testing.T) {
	root, _, store, svc, dirID := setupTinyTree(t)
	ctx := context.Background()

	_, err := svc.Index(ctx, dirID, nil)
	require.NoError(t, err)

	oldHash := sha256.Sum256([]byte("hello"))
	newHash := sha256.Sum256([]byte("hello world"))
	require.True(t, store.chunkHashes()[hex.EncodeToString(oldHash[:])])

	writeFile(t, root, "a.md", "hello world")

	scan, err := svc.Scan(ctx, dirID)
	require.NoError(t, err)
	assert.Equal(t, &ScanResult{Modified: 1, Unchanged: 2}, scan)

	stats, err := svc.Index(ctx, dirID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.IndexedFiles)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	hashes := store.chunkHashes()
	assert.False(t, hashes[hex.EncodeToString(oldHash[:])], "stale chunk hash must be purged")
	assert.True(t, hashes[hex.EncodeToString(newHash[:])])
}

func TestDeletedFilePurged(t *testing.T) {
	root, cat, store, svc, dirID := setupTinyTree(t)
	ctx := context.Background()

	_, err := svc.Index(ctx, dirID, nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "b.py")))

	scan, err := svc.Scan(ctx, dirID)
	require.NoError(t, err)
	assert.Equal(t, &ScanResult{Deleted: 1, Unchanged: 2}, scan)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	files, err := cat.ListFiles(ctx, dirID)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestNewAndRenamedFilesDetected(t *testing.T) {
	root, _, _, svc, dirID := setupTinyTree(t)
	ctx := context.Background()

	_, err := svc.Index(ctx, dirID, nil)
	require.NoError(t, err)

	// A rename is a delete of the old path plus an add of the new one.
	require.NoError(t, os.Rename(filepath.Join(root, "a.md"), filepath.Join(root, "renamed.md")))
	writeFile(t, root, "d.txt", "fresh")

	scan, err := svc.Scan(ctx, dirID)
	require.NoError(t, err)
	assert.Equal(t, &ScanResult{New: 2, Deleted: 1, Unchanged: 2}, scan)
}

func TestProgressMonotonic(t *testing.T) {
	_, _, _, svc, dirID := setupTinyTree(t)
	ctx := context.Background()

	var mu sync.Mutex
	var events []Progress
	sink := Sink(func(p Progress) {
		mu.Lock()
		events = append(events, p)
		mu.Unlock()
	})

	_, err := svc.Index(ctx, dirID, sink)
	require.NoError(t, err)

	require.NotEmpty(t, events)
	assert.Equal(t, StatusScanning, events[0].Status)
	assert.Equal(t, StatusComplete, events[len(events)-1].Status)
	assert.Equal(t, 1.0, events[len(events)-1].Progress)

	last := -1.0
	for _, e := range events {
		assert.GreaterOrEqual(t, e.Progress, last, "progress must never decrease")
		last = e.Progress
	}
}

func TestIndexErrorsStayLocal(t *testing.T) {
	root, _, _, svc, dirID := setupTinyTree(t)
	ctx := context.Background()

	// An unreadable file still gets a stable errored identity and the
	// batch carries on.
	writeFile(t, root, "locked.txt", "secret")
	require.NoError(t, os.Chmod(filepath.Join(root, "locked.txt"), 0o000))
	t.Cleanup(func() { _ = os.Chmod(filepath.Join(root, "locked.txt"), 0o644) })

	stats, err := svc.Index(ctx, dirID, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalFiles)
	// The failed extraction degrades to a short failure text, which still
	// produces a chunk, so the file indexes rather than erroring.
	assert.Equal(t, 4, stats.IndexedFiles)
}

func TestChannelSinkDropsOldest(t *testing.T) {
	ch := make(chan Progress, 2)
	sink := ChannelSink(ch)

	for i := 0; i < 5; i++ {
		sink(Progress{Message: string(rune('a' + i))})
	}

	// The two newest events survive.
	first := <-ch
	second := <-ch
	assert.Equal(t, "d", first.Message)
	assert.Equal(t, "e", second.Message)
}
