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

// Package indexer drives the indexing pipeline for one directory: scan,
// change detection, extraction, chunking, embedding, vector upsert, and
// Merkle tree rebuild. A background reindexer sweeps stale directories on
// a schedule.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/hearth/pkg/catalog"
	"github.com/kadirpekel/hearth/pkg/chunker"
	"github.com/kadirpekel/hearth/pkg/embedder"
	"github.com/kadirpekel/hearth/pkg/extract"
	"github.com/kadirpekel/hearth/pkg/merkle"
	"github.com/kadirpekel/hearth/pkg/metrics"
	"github.com/kadirpekel/hearth/pkg/scanner"
	"github.com/kadirpekel/hearth/pkg/vector"
)

// ScanResult is the outcome of change detection for one directory.
type ScanResult struct {
	New       int `json:"new"`
	Modified  int `json:"modified"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
}

// Stats summarizes one indexing run.
type Stats struct {
	TotalFiles   int      `json:"total_files"`
	IndexedFiles int      `json:"indexed_files"`
	TotalChunks  int      `json:"total_chunks"`
	Errors       []string `json:"errors"`
	MerkleRoot   string   `json:"merkle_root,omitempty"`
}

// Service orchestrates indexing runs. Per-file failures are recorded and
// skipped; they never abort a batch.
type Service struct {
	catalog    *catalog.Store
	vectors    vector.Store
	embedder   embedder.Embedder
	extractors *extract.Registry
	workers    int
	logger     *slog.Logger
}

// New creates an indexing service. workers bounds how many files are in
// the extract-chunk-embed pipeline at once.
func New(cat *catalog.Store, vectors vector.Store, emb embedder.Embedder, workers int) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		catalog:    cat,
		vectors:    vectors,
		embedder:   emb,
		extractors: extract.NewRegistry(),
		workers:    workers,
		logger:     slog.Default(),
	}
}

// Scan runs change detection for a directory and reconciles the catalog:
// new files are inserted, modified files have their indexed flag reset,
// deleted files are purged from the catalog and the vector store. The
// catalog is the truth table after this call, before any embedding work.
func (s *Service) Scan(ctx context.Context, directoryID string) (*ScanResult, error) {
	dir, err := s.catalog.GetDirectory(ctx, directoryID)
	if err != nil {
		return nil, err
	}
	result, _, err := s.reconcile(ctx, dir)
	return result, err
}

// Index runs the full pipeline for a directory and reports progress to
// sink. Returns stats for the run; per-file errors are inside stats, not
// the error return.
func (s *Service) Index(ctx context.Context, directoryID string, sink Sink) (*Stats, error) {
	dir, err := s.catalog.GetDirectory(ctx, directoryID)
	if err != nil {
		return nil, err
	}

	metrics.IndexJobsActive.Inc()
	defer metrics.IndexJobsActive.Dec()

	sink.emit(Progress{Status: StatusScanning, Progress: 0, Message: "Scanning " + dir.Path})

	detection, records, err := s.reconcile(ctx, dir)
	if err != nil {
		sink.emit(Progress{Status: StatusError, Message: err.Error()})
		return nil, err
	}
	s.logger.Info("Change detection complete", "directory", dir.Path,
		"new", detection.New, "modified", detection.Modified,
		"deleted", detection.Deleted, "unchanged", detection.Unchanged)

	settings, err := s.catalog.GetSettings(ctx)
	if err != nil {
		sink.emit(Progress{Status: StatusError, Message: err.Error()})
		return nil, err
	}
	chunkCfg := chunker.Config{ChunkSize: settings.ChunkSize, ChunkOverlap: settings.ChunkOverlap}

	// Smallest files first: quick wins reach the sink early.
	worklist, err := s.catalog.FilesToIndex(ctx, dir.ID)
	if err != nil {
		sink.emit(Progress{Status: StatusError, Message: err.Error()})
		return nil, err
	}

	stats := &Stats{Errors: []string{}}
	var mu sync.Mutex
	completed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, file := range worklist {
		file := file
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			chunks, err := s.indexFile(gctx, dir, file, chunkCfg)

			mu.Lock()
			completed++
			progress := 0.1 + 0.8*float64(completed)/float64(len(worklist))
			if err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", file.RelativePath, err))
				metrics.FilesIndexed.WithLabelValues("error").Inc()
				s.logger.Warn("Failed to index file", "file", file.RelativePath, "error", err)
			} else {
				stats.IndexedFiles++
				stats.TotalChunks += chunks
				metrics.FilesIndexed.WithLabelValues("ok").Inc()
			}
			mu.Unlock()

			sink.emit(Progress{
				Status:      StatusIndexing,
				CurrentFile: file.RelativePath,
				Progress:    progress,
				Message:     fmt.Sprintf("Indexed %d/%d files", completed, len(worklist)),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		sink.emit(Progress{Status: StatusError, Message: err.Error()})
		return nil, err
	}

	// Rebuild the Merkle tree from the scanned universe so the stored
	// tree always reflects the filesystem this run saw.
	sink.emit(Progress{Status: StatusFinalizing, Progress: 0.95, Message: "Rebuilding merkle tree"})
	leaves := make([]merkle.Leaf, 0, len(records))
	for _, rec := range records {
		leaves = append(leaves, merkle.Leaf{Path: rec.RelativePath, ContentHash: rec.ContentHash})
	}
	nodes := merkle.Build(leaves)
	catalogNodes := make([]catalog.MerkleNode, 0, len(nodes))
	for _, n := range nodes {
		catalogNodes = append(catalogNodes, catalog.MerkleNode{
			DirectoryID: dir.ID,
			NodePath:    n.Path,
			NodeHash:    n.Hash,
			IsLeaf:      n.IsLeaf,
			ParentPath:  n.Parent,
			Depth:       n.Depth,
		})
		if n.Path == "" {
			stats.MerkleRoot = n.Hash
		}
	}
	if err := s.catalog.ReplaceMerkleTree(ctx, dir.ID, catalogNodes); err != nil {
		sink.emit(Progress{Status: StatusError, Message: err.Error()})
		return nil, err
	}

	if err := s.catalog.TouchDirectoryIndexed(ctx, dir.ID, nowUTC()); err != nil {
		return nil, err
	}

	dirStats, err := s.catalog.GetDirectoryStats(ctx, dir.ID)
	if err != nil {
		return nil, err
	}
	stats.TotalFiles = dirStats.TotalFiles

	sink.emit(Progress{
		Status:   StatusComplete,
		Progress: 1,
		Message:  fmt.Sprintf("Indexed %d files, %d chunks", stats.IndexedFiles, stats.TotalChunks),
	})
	return stats, nil
}

// reconcile scans the filesystem and updates the catalog's file table to
// match, returning the change counts and the scanned records.
func (s *Service) reconcile(ctx context.Context, dir *catalog.Directory) (*ScanResult, []scanner.FileRecord, error) {
	sc := scanner.New(dir.IncludePatterns, dir.ExcludePatterns)
	records, err := sc.Scan(ctx, dir.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("scan failed for %s: %w", dir.Path, err)
	}

	known, err := s.catalog.ListFiles(ctx, dir.ID)
	if err != nil {
		return nil, nil, err
	}
	knownByPath := make(map[string]catalog.File, len(known))
	for _, f := range known {
		knownByPath[f.RelativePath] = f
	}

	result := &ScanResult{}
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		seen[rec.RelativePath] = true

		prev, exists := knownByPath[rec.RelativePath]
		switch {
		case !exists:
			result.New++
		case prev.ContentHash != rec.ContentHash:
			result.Modified++
		default:
			result.Unchanged++
			continue
		}

		_, err := s.catalog.UpsertFile(ctx, catalog.File{
			DirectoryID:  dir.ID,
			RelativePath: rec.RelativePath,
			ContentHash:  rec.ContentHash,
			MerkleHash:   merkle.LeafHash(rec.RelativePath, rec.ContentHash),
			Size:         rec.Size,
			ModifiedAt:   rec.ModTime,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	removed, err := s.catalog.DeleteFilesNotIn(ctx, dir.ID, seen)
	if err != nil {
		return nil, nil, err
	}
	result.Deleted = len(removed)
	for _, f := range removed {
		if err := s.vectors.DeleteByFile(ctx, f.ID); err != nil {
			s.logger.Warn("Failed to purge vectors for deleted file", "file", f.RelativePath, "error", err)
		}
	}

	return result, records, nil
}

// indexFile runs extract, chunk, embed, and upsert for one file. Prior
// embeddings are removed first so reindexing a modified file is
// idempotent.
func (s *Service) indexFile(ctx context.Context, dir *catalog.Directory, file catalog.File, chunkCfg chunker.Config) (int, error) {
	staleVectors, err := s.catalog.DeleteEmbeddingsByFile(ctx, file.ID)
	if err != nil {
		return 0, err
	}
	if len(staleVectors) > 0 {
		if err := s.vectors.Delete(ctx, staleVectors); err != nil {
			return 0, fmt.Errorf("failed to purge stale vectors: %w", err)
		}
	}

	absPath := filepath.Join(dir.Path, filepath.FromSlash(file.RelativePath))
	extracted := s.extractors.Extract(ctx, absPath)

	chunks := chunker.ForFile(chunkCfg, file.RelativePath).Split(extracted.Text)
	if len(chunks) == 0 {
		return 0, s.catalog.MarkFileIndexed(ctx, file.ID, 0)
	}

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return 0, err
	}

	records := make([]vector.Record, len(chunks))
	embeddings := make([]catalog.Embedding, len(chunks))
	for i, chunk := range chunks {
		vectorID := uuid.NewString()
		payload := map[string]any{
			vector.PayloadFileID:      file.ID,
			vector.PayloadFilePath:    file.RelativePath,
			vector.PayloadDirectoryID: dir.ID,
			vector.PayloadChunkIndex:  chunk.Index,
			vector.PayloadChunkHash:   chunk.Hash,
			vector.PayloadStartChar:   chunk.StartChar,
			vector.PayloadEndChar:     chunk.EndChar,
			"extraction_method":       extracted.Method,
		}
		for k, v := range extracted.Metadata {
			payload[k] = v
		}

		records[i] = vector.Record{
			ID:      vectorID,
			Vector:  vectors[i],
			Content: chunk.Text,
			Payload: payload,
		}
		embeddings[i] = catalog.Embedding{
			FileID:     file.ID,
			ChunkIndex: chunk.Index,
			StartChar:  chunk.StartChar,
			EndChar:    chunk.EndChar,
			ChunkHash:  chunk.Hash,
			VectorID:   vectorID,
		}
	}

	if err := s.vectors.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("vector upsert failed: %w", err)
	}
	if err := s.catalog.InsertEmbeddings(ctx, embeddings); err != nil {
		return 0, err
	}
	if err := s.catalog.MarkFileIndexed(ctx, file.ID, len(chunks)); err != nil {
		return 0, err
	}

	metrics.ChunksEmbedded.Add(float64(len(chunks)))
	return len(chunks), nil
}

// embedChunks batches chunk texts through the embedder.
func (s *Service) embedChunks(ctx context.Context, chunks []chunker.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedder.MaxBatchSize {
		end := start + embedder.MaxBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}

		batch, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding failed: %w", err)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
