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

// Package retrieval answers queries against the indexed corpus: it
// resolves which directories to search, embeds the query, and formats
// the matching chunks into prompt context.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/hearth/pkg/catalog"
	"github.com/kadirpekel/hearth/pkg/embedder"
	"github.com/kadirpekel/hearth/pkg/vector"
)

// Retriever runs semantic search over indexed chunks.
type Retriever struct {
	catalog  *catalog.Store
	embedder embedder.Embedder
	store    vector.Store
}

// Result is one retrieved chunk with its provenance.
type Result struct {
	Content    string  `json:"content"`
	FilePath   string  `json:"file_path"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

// ContextInfo summarizes what retrieval contributed to a response.
type ContextInfo struct {
	ChunksUsed int      `json:"chunks_used"`
	Sources    []string `json:"sources"`
	TopScore   float64  `json:"top_score"`
}

// New creates a Retriever.
func New(cat *catalog.Store, emb embedder.Embedder, store vector.Store) *Retriever {
	return &Retriever{catalog: cat, embedder: emb, store: store}
}

// ResolveDirectories decides the search scope: explicitly requested
// directories win, then the conversation's attached contexts. An empty
// result means there is nothing to search; callers skip retrieval
// entirely rather than querying unscoped.
func (r *Retriever) ResolveDirectories(ctx context.Context, conversationID string, explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}
	if conversationID == "" {
		return nil, nil
	}

	ids, err := r.catalog.ActiveContextDirectories(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve conversation contexts: %w", err)
	}
	return ids, nil
}

// Retrieve returns the chunks most similar to the query, filtered by the
// stored settings. directoryIDs of nil searches everything.
func (r *Retriever) Retrieve(ctx context.Context, query string, directoryIDs []string) ([]Result, error) {
	return r.RetrieveWithOptions(ctx, query, directoryIDs, 0, nil)
}

// RetrieveWithOptions is Retrieve with per-request overrides: topK of 0
// and a nil minScore fall back to the stored settings.
func (r *Retriever) RetrieveWithOptions(ctx context.Context, query string, directoryIDs []string, topK int, minScore *float64) ([]Result, error) {
	settings, err := r.catalog.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = settings.TopK
	}
	threshold := settings.MinScore
	if minScore != nil {
		threshold = *minScore
	}

	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var filter *vector.Filter
	if len(directoryIDs) > 0 {
		filter = &vector.Filter{DirectoryIDs: directoryIDs}
	}

	matches, err := r.store.Query(ctx, queryVector, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m.Score < threshold {
			continue
		}
		res := Result{Content: m.Content, Score: m.Score}
		if path, ok := m.Payload[vector.PayloadFilePath].(string); ok {
			res.FilePath = path
		}
		res.ChunkIndex = payloadInt(m.Payload[vector.PayloadChunkIndex])
		results = append(results, res)
	}

	slog.Debug("Retrieved chunks", "query_len", len(query), "matches", len(matches), "kept", len(results))
	return results, nil
}

// Info summarizes results for stream metadata. Sources are unique file
// paths in score order.
func Info(results []Result) ContextInfo {
	info := ContextInfo{ChunksUsed: len(results)}
	seen := make(map[string]bool)
	for _, r := range results {
		if !seen[r.FilePath] {
			seen[r.FilePath] = true
			info.Sources = append(info.Sources, r.FilePath)
		}
	}
	if len(results) > 0 {
		info.TopScore = results[0].Score
	}
	return info
}

// payloadInt tolerates the numeric types payloads come back as: JSON
// decodes to float64, some stores return strings.
func payloadInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		var i int
		fmt.Sscanf(n, "%d", &i)
		return i
	default:
		return 0
	}
}
