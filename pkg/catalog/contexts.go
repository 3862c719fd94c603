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

// ConversationContext links a conversation to a directory so retrieval
// can scope to the directories the conversation has attached.
type ConversationContext struct {
	ConversationID string    `json:"conversation_id"`
	DirectoryID    string    `json:"directory_id"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// LinkContext attaches a directory to a conversation. Re-linking an
// existing pair reactivates it; the call is idempotent.
func (s *Store) LinkContext(ctx context.Context, conversationID, directoryID string) (*ConversationContext, error) {
	if _, err := s.GetDirectory(ctx, directoryID); err != nil {
		return nil, err
	}
	if _, err := s.EnsureConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	row := s.queryRow(ctx, `
SELECT conversation_id, directory_id, is_active, created_at
FROM conversation_contexts WHERE conversation_id = ? AND directory_id = ?`,
		conversationID, directoryID)

	var cc ConversationContext
	err := row.Scan(&cc.ConversationID, &cc.DirectoryID, &cc.IsActive, &cc.CreatedAt)
	if err == nil {
		if !cc.IsActive {
			_, err = s.exec(ctx, `
UPDATE conversation_contexts SET is_active = TRUE
WHERE conversation_id = ? AND directory_id = ?`, conversationID, directoryID)
			if err != nil {
				return nil, fmt.Errorf("failed to reactivate context: %w", err)
			}
			cc.IsActive = true
		}
		return &cc, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get context: %w", err)
	}

	cc = ConversationContext{
		ConversationID: conversationID,
		DirectoryID:    directoryID,
		IsActive:       true,
		CreatedAt:      now(),
	}
	_, err = s.exec(ctx, `
INSERT INTO conversation_contexts (conversation_id, directory_id, is_active, created_at)
VALUES (?, ?, TRUE, ?)`, cc.ConversationID, cc.DirectoryID, cc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to link context: %w", err)
	}
	return &cc, nil
}

// UnlinkContext detaches a directory from a conversation. The row stays;
// is_active flips to false so the link can be restored.
func (s *Store) UnlinkContext(ctx context.Context, conversationID, directoryID string) error {
	result, err := s.exec(ctx, `
UPDATE conversation_contexts SET is_active = FALSE
WHERE conversation_id = ? AND directory_id = ?`, conversationID, directoryID)
	if err != nil {
		return fmt.Errorf("failed to unlink context: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return &NotFoundError{Kind: "conversation context", ID: conversationID + "/" + directoryID}
	}
	return nil
}

// ActiveContextDirectories returns the ids of active directories linked
// to a conversation. Inactive directories are excluded even when the
// link itself is still active.
func (s *Store) ActiveContextDirectories(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := s.query(ctx, `
SELECT cc.directory_id FROM conversation_contexts cc
JOIN directories d ON d.id = cc.directory_id
WHERE cc.conversation_id = ? AND cc.is_active = TRUE AND d.is_active = TRUE
ORDER BY cc.created_at`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list context directories: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan directory id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
