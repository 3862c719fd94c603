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

// Package embedder transforms chunk text into dense vectors through a
// local embedding model server.
package embedder

import "context"

// MaxBatchSize caps how many texts go to the model server in one request.
const MaxBatchSize = 32

// Embedder produces vector embeddings from text. Implementations must be
// deterministic for identical inputs.
type Embedder interface {
	// Embed converts one text to a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts to vector embeddings, in input
	// order. More efficient than calling Embed repeatedly.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension, or 0 before the
	// first successful call.
	Dimension() int

	// Model returns the active model identifier.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// Reloadable is implemented by embedders that can swap models in place.
// Swapping invalidates every stored vector; callers must clear the vector
// collection afterwards.
type Reloadable interface {
	Reload(model string)
}
