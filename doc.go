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

// Package hearth is an on-device conversational AI runtime: it hosts a
// local generative language model, augments each request with retrieved
// document context, and optionally routes the model's output through a
// tool-execution loop before streaming tokens back to the client.
//
// # Quick Start
//
// Install hearth:
//
//	go install github.com/kadirpekel/hearth/cmd/hearth@latest
//
// Start the server with the development preset:
//
//	hearth serve --preset development
//
// Register and index a directory:
//
//	curl -X POST localhost:8000/rag/directories -d '{"path": "/home/me/docs"}'
//
// Generate with retrieved context:
//
//	curl -N -X POST localhost:8000/generate -d '{"prompt": "summarize my notes", "conversation_id": "c1"}'
//
// # Using as a Go Library
//
// Import specific packages:
//
//	import (
//	    "github.com/kadirpekel/hearth/pkg/indexer"
//	    "github.com/kadirpekel/hearth/pkg/retrieval"
//	    "github.com/kadirpekel/hearth/pkg/generate"
//	)
//
// # Architecture
//
// Indexing walks registered directories, detects changes with content
// hashes and a Merkle tree, extracts and chunks text, embeds chunks,
// and persists them in a vector store (pkg/merkle, pkg/scanner,
// pkg/extract, pkg/chunker, pkg/embedder, pkg/vector, pkg/indexer).
// The relational catalog (pkg/catalog) is the source of truth for
// directories, files, conversations, tools, and settings. Retrieval
// (pkg/retrieval) resolves directory scope, runs similarity search, and
// formats context under a character budget. Generation (pkg/generate)
// owns the LLM handle and streams token events; the tool state machine
// (pkg/runtime) gives the model one tool round-trip per turn over the
// registry in pkg/tools. The HTTP/WS surface lives in pkg/server.
//
// # License
//
// AGPL-3.0 - See LICENSE.md for details.
package hearth
