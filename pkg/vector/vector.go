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

// Package vector persists chunk embeddings and answers top-k similarity
// queries with per-directory filters. Two providers are available: an
// embedded chromem store (default, zero external services) and Qdrant.
package vector

import "context"

// Payload keys every record carries.
const (
	PayloadFileID      = "file_id"
	PayloadFilePath    = "file_path"
	PayloadDirectoryID = "directory_id"
	PayloadChunkIndex  = "chunk_index"
	PayloadChunkHash   = "chunk_hash"
	PayloadStartChar   = "start_char"
	PayloadEndChar     = "end_char"
)

// Record is one stored embedding with its payload.
type Record struct {
	ID      string
	Vector  []float32
	Content string
	Payload map[string]any
}

// Result is one similarity hit. Score is a similarity in (0,1] derived
// from the provider's native distance via score = 1 / (1 + distance).
type Result struct {
	ID      string
	Score   float64
	Content string
	Payload map[string]any
}

// Filter restricts a query to a set of directories. A nil or empty filter
// matches everything.
type Filter struct {
	DirectoryIDs []string
}

// Store is the vector persistence contract. Implementations are safe for
// concurrent reads and serialize writes internally.
type Store interface {
	// Upsert adds or replaces records.
	Upsert(ctx context.Context, records []Record) error

	// Delete removes records by id. Missing ids are not an error.
	Delete(ctx context.Context, ids []string) error

	// DeleteByFile removes every record whose payload file_id matches.
	DeleteByFile(ctx context.Context, fileID string) error

	// Query returns up to topK hits sorted by score descending.
	Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Result, error)

	// Clear drops and recreates the collection.
	Clear(ctx context.Context) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close persists pending state and releases resources.
	Close() error
}

// scoreFromDistance maps a native distance to the (0,1] similarity scale.
func scoreFromDistance(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}
