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
	"database/sql"
	"fmt"
	"time"
)

// settingsRowID pins rag_settings to a single row.
const settingsRowID = 1

// Settings are the tunable retrieval parameters. A single row holds
// them; GetSettings lazily creates the defaults.
type Settings struct {
	ChunkSize      int       `json:"chunk_size"`
	ChunkOverlap   int       `json:"chunk_overlap"`
	EmbeddingModel string    `json:"embedding_model"`
	TopK           int       `json:"top_k"`
	MinScore       float64   `json:"min_score"`
	SystemPrompt   string    `json:"system_prompt"`
	Rules          string    `json:"rules"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DefaultSettings returns the out-of-the-box retrieval parameters.
func DefaultSettings() Settings {
	return Settings{
		ChunkSize:      1000,
		ChunkOverlap:   200,
		EmbeddingModel: "all-MiniLM-L6-v2",
		TopK:           5,
		MinScore:       0.3,
	}
}

// Validate rejects parameter combinations retrieval cannot work with.
func (st *Settings) Validate() error {
	if st.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", st.ChunkSize)
	}
	if st.ChunkOverlap < 0 || st.ChunkOverlap >= st.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", st.ChunkOverlap)
	}
	if st.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", st.TopK)
	}
	if st.MinScore < 0 || st.MinScore > 1 {
		return fmt.Errorf("min_score must be in [0, 1], got %f", st.MinScore)
	}
	return nil
}

// GetSettings returns the stored settings, creating the default row on
// first access.
func (s *Store) GetSettings(ctx context.Context) (*Settings, error) {
	row := s.queryRow(ctx, `
SELECT chunk_size, chunk_overlap, embedding_model, top_k, min_score, system_prompt, rules, updated_at
FROM rag_settings WHERE id = ?`, settingsRowID)

	var st Settings
	err := row.Scan(&st.ChunkSize, &st.ChunkOverlap, &st.EmbeddingModel, &st.TopK,
		&st.MinScore, &st.SystemPrompt, &st.Rules, &st.UpdatedAt)
	if err == nil {
		return &st, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	st = DefaultSettings()
	st.UpdatedAt = now()
	_, err = s.exec(ctx, `
INSERT INTO rag_settings (id, chunk_size, chunk_overlap, embedding_model, top_k, min_score, system_prompt, rules, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		settingsRowID, st.ChunkSize, st.ChunkOverlap, st.EmbeddingModel, st.TopK,
		st.MinScore, st.SystemPrompt, st.Rules, st.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create default settings: %w", err)
	}
	return &st, nil
}

// UpdateSettings validates and stores new settings, returning the stored
// row.
func (s *Store) UpdateSettings(ctx context.Context, st Settings) (*Settings, error) {
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	// Ensure the row exists before updating.
	if _, err := s.GetSettings(ctx); err != nil {
		return nil, err
	}

	st.UpdatedAt = now()
	_, err := s.exec(ctx, `
UPDATE rag_settings SET chunk_size = ?, chunk_overlap = ?, embedding_model = ?, top_k = ?,
       min_score = ?, system_prompt = ?, rules = ?, updated_at = ?
WHERE id = ?`,
		st.ChunkSize, st.ChunkOverlap, st.EmbeddingModel, st.TopK,
		st.MinScore, st.SystemPrompt, st.Rules, st.UpdatedAt, settingsRowID)
	if err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	return &st, nil
}
