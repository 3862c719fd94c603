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

package catalog

import (
	"context"
	"fmt"
	"time"
)

const createDirectoriesTableSQL = `
CREATE TABLE IF NOT EXISTS directories (
    id VARCHAR(36) NOT NULL PRIMARY KEY,
    path TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    include_patterns TEXT NOT NULL,
    exclude_patterns TEXT NOT NULL,
    index_frequency_minutes INTEGER NOT NULL DEFAULT 60,
    last_indexed_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_directories_active ON directories(is_active);
`

const createFilesTableSQL = `
CREATE TABLE IF NOT EXISTS files (
    id VARCHAR(36) NOT NULL PRIMARY KEY,
    directory_id VARCHAR(36) NOT NULL,
    relative_path TEXT NOT NULL,
    content_hash VARCHAR(64) NOT NULL,
    merkle_hash VARCHAR(64) NOT NULL,
    file_size BIGINT NOT NULL,
    modified_at TIMESTAMP NOT NULL,
    is_indexed BOOLEAN NOT NULL DEFAULT FALSE,
    indexed_at TIMESTAMP,
    chunk_count INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (directory_id) REFERENCES directories(id) ON DELETE CASCADE,
    UNIQUE (directory_id, relative_path)
);

CREATE INDEX IF NOT EXISTS idx_files_directory ON files(directory_id);
CREATE INDEX IF NOT EXISTS idx_files_unindexed ON files(directory_id, is_indexed);
`

const createMerkleNodesTableSQL = `
CREATE TABLE IF NOT EXISTS merkle_nodes (
    id VARCHAR(36) NOT NULL PRIMARY KEY,
    directory_id VARCHAR(36) NOT NULL,
    node_path TEXT NOT NULL,
    node_hash VARCHAR(64) NOT NULL,
    is_leaf BOOLEAN NOT NULL,
    parent_path TEXT,
    depth INTEGER NOT NULL,
    FOREIGN KEY (directory_id) REFERENCES directories(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_merkle_directory ON merkle_nodes(directory_id);
`

const createEmbeddingsTableSQL = `
CREATE TABLE IF NOT EXISTS embeddings (
    id VARCHAR(36) NOT NULL PRIMARY KEY,
    file_id VARCHAR(36) NOT NULL,
    chunk_index INTEGER NOT NULL,
    start_char INTEGER NOT NULL,
    end_char INTEGER NOT NULL,
    chunk_hash VARCHAR(64) NOT NULL,
    vector_id VARCHAR(36) NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_embeddings_file ON embeddings(file_id);
`

const createConversationsTableSQL = `
CREATE TABLE IF NOT EXISTS conversations (
    id VARCHAR(36) NOT NULL PRIMARY KEY,
    title TEXT NOT NULL,
    last_updated TIMESTAMP NOT NULL
);
`

const createMessagesTableSQL = `
CREATE TABLE IF NOT EXISTS messages (
    id VARCHAR(36) NOT NULL PRIMARY KEY,
    conversation_id VARCHAR(36) NOT NULL,
    role VARCHAR(50) NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
`

const createContextsTableSQL = `
CREATE TABLE IF NOT EXISTS conversation_contexts (
    conversation_id VARCHAR(36) NOT NULL,
    directory_id VARCHAR(36) NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (conversation_id, directory_id),
    FOREIGN KEY (directory_id) REFERENCES directories(id) ON DELETE CASCADE
);
`

const createUserToolsTableSQL = `
CREATE TABLE IF NOT EXISTS user_tools (
    name VARCHAR(255) NOT NULL PRIMARY KEY,
    description TEXT NOT NULL,
    parameters TEXT NOT NULL,
    command TEXT NOT NULL,
    is_enabled BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL
);
`

const createToolExecutionsTableSQL = `
CREATE TABLE IF NOT EXISTS tool_executions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tool_name VARCHAR(255) NOT NULL,
    arguments TEXT NOT NULL,
    result TEXT NOT NULL,
    executed_at TIMESTAMP NOT NULL
);
`

const createToolExecutionsTablePostgresSQL = `
CREATE TABLE IF NOT EXISTS tool_executions (
    id SERIAL PRIMARY KEY,
    tool_name VARCHAR(255) NOT NULL,
    arguments TEXT NOT NULL,
    result TEXT NOT NULL,
    executed_at TIMESTAMP NOT NULL
);
`

const createToolExecutionsTableMySQLSQL = `
CREATE TABLE IF NOT EXISTS tool_executions (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    tool_name VARCHAR(255) NOT NULL,
    arguments TEXT NOT NULL,
    result TEXT NOT NULL,
    executed_at TIMESTAMP NOT NULL
);
`

const createSettingsTableSQL = `
CREATE TABLE IF NOT EXISTS rag_settings (
    id INTEGER NOT NULL PRIMARY KEY,
    chunk_size INTEGER NOT NULL,
    chunk_overlap INTEGER NOT NULL,
    embedding_model VARCHAR(255) NOT NULL,
    top_k INTEGER NOT NULL,
    min_score DOUBLE PRECISION NOT NULL,
    system_prompt TEXT NOT NULL,
    rules TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

func (s *Store) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	toolExecutionsSQL := createToolExecutionsTableSQL
	switch s.dialect {
	case "postgres":
		toolExecutionsSQL = createToolExecutionsTablePostgresSQL
	case "mysql":
		toolExecutionsSQL = createToolExecutionsTableMySQLSQL
	}

	statements := []string{
		createDirectoriesTableSQL,
		createFilesTableSQL,
		createMerkleNodesTableSQL,
		createEmbeddingsTableSQL,
		createConversationsTableSQL,
		createMessagesTableSQL,
		createContextsTableSQL,
		createUserToolsTableSQL,
		toolExecutionsSQL,
		createSettingsTableSQL,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	if s.dialect == "sqlite" {
		if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			return fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	return nil
}
