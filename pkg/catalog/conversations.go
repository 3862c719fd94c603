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

	"github.com/google/uuid"
)

// Conversation groups messages under a stable id.
type Conversation struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	LastUpdated time.Time `json:"last_updated"`
}

// Message is one turn of a conversation. Role is "user" or "assistant".
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// EnsureConversation creates the conversation row if it does not exist.
// A new conversation is titled from the first message later; until then
// the id doubles as the title.
func (s *Store) EnsureConversation(ctx context.Context, id string) (*Conversation, error) {
	if id == "" {
		id = uuid.NewString()
	}

	row := s.queryRow(ctx, `SELECT id, title, last_updated FROM conversations WHERE id = ?`, id)
	var conv Conversation
	err := row.Scan(&conv.ID, &conv.Title, &conv.LastUpdated)
	if err == nil {
		return &conv, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	conv = Conversation{ID: id, Title: id, LastUpdated: now()}
	_, err = s.exec(ctx, `INSERT INTO conversations (id, title, last_updated) VALUES (?, ?, ?)`,
		conv.ID, conv.Title, conv.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &conv, nil
}

// AppendMessage stores one turn and bumps the conversation timestamp.
// The first user message becomes the conversation title, truncated.
func (s *Store) AppendMessage(ctx context.Context, conversationID, role, content string) (*Message, error) {
	if role != "user" && role != "assistant" {
		return nil, fmt.Errorf("invalid message role: %s", role)
	}

	conv, err := s.EnsureConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	msg := Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           role,
		Content:        content,
		CreatedAt:      now(),
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.bind(`
INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`),
			msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		if conv.Title == conv.ID && role == "user" {
			title := content
			if len(title) > 80 {
				title = title[:80]
			}
			if _, err := tx.ExecContext(ctx, s.bind(`UPDATE conversations SET title = ? WHERE id = ?`), title, conv.ID); err != nil {
				return fmt.Errorf("failed to set conversation title: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, s.bind(`UPDATE conversations SET last_updated = ? WHERE id = ?`), msg.CreatedAt, conv.ID); err != nil {
			return fmt.Errorf("failed to touch conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// RecentMessages returns the last limit messages in chronological order.
func (s *Store) RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.query(ctx, `
SELECT id, conversation_id, role, content, created_at FROM messages
WHERE conversation_id = ? ORDER BY created_at DESC LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query returns newest first; callers want chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ListConversations returns conversations, most recently updated first.
func (s *Store) ListConversations(ctx context.Context) ([]Conversation, error) {
	rows, err := s.query(ctx, `SELECT id, title, last_updated FROM conversations ORDER BY last_updated DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// DeleteConversation removes a conversation; messages cascade.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	_, err := s.exec(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}
