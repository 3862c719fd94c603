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

// UserTool is a user-defined subprocess tool. Parameters is the JSON
// schema of the tool's arguments as stored; Command is the template run
// on execution.
type UserTool struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Parameters  string    `json:"parameters"`
	Command     string    `json:"command"`
	IsEnabled   bool      `json:"is_enabled"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToolExecution is one logged tool invocation.
type ToolExecution struct {
	ID         int64     `json:"id"`
	ToolName   string    `json:"tool_name"`
	Arguments  string    `json:"arguments"`
	Result     string    `json:"result"`
	ExecutedAt time.Time `json:"executed_at"`
}

// SaveUserTool inserts or replaces a user-defined tool by name.
func (s *Store) SaveUserTool(ctx context.Context, tool UserTool) (*UserTool, error) {
	if tool.Name == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	tool.IsEnabled = true
	tool.CreatedAt = now()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.bind(`DELETE FROM user_tools WHERE name = ?`), tool.Name); err != nil {
			return fmt.Errorf("failed to replace tool: %w", err)
		}
		_, err := tx.ExecContext(ctx, s.bind(`
INSERT INTO user_tools (name, description, parameters, command, is_enabled, created_at)
VALUES (?, ?, ?, ?, ?, ?)`),
			tool.Name, tool.Description, tool.Parameters, tool.Command, tool.IsEnabled, tool.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save tool: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &tool, nil
}

// GetUserTool fetches one user-defined tool by name.
func (s *Store) GetUserTool(ctx context.Context, name string) (*UserTool, error) {
	row := s.queryRow(ctx, `
SELECT name, description, parameters, command, is_enabled, created_at
FROM user_tools WHERE name = ?`, name)

	var t UserTool
	err := row.Scan(&t.Name, &t.Description, &t.Parameters, &t.Command, &t.IsEnabled, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "tool", ID: name}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tool: %w", err)
	}
	return &t, nil
}

// ListUserTools returns user-defined tools, optionally only enabled ones.
func (s *Store) ListUserTools(ctx context.Context, enabledOnly bool) ([]UserTool, error) {
	query := `SELECT name, description, parameters, command, is_enabled, created_at FROM user_tools`
	if enabledOnly {
		query += ` WHERE is_enabled = TRUE`
	}
	query += ` ORDER BY name`

	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	defer rows.Close()

	var tools []UserTool
	for rows.Next() {
		var t UserTool
		if err := rows.Scan(&t.Name, &t.Description, &t.Parameters, &t.Command, &t.IsEnabled, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tool: %w", err)
		}
		tools = append(tools, t)
	}
	return tools, rows.Err()
}

// DeleteUserTool removes a user-defined tool by name.
func (s *Store) DeleteUserTool(ctx context.Context, name string) error {
	result, err := s.exec(ctx, `DELETE FROM user_tools WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete tool: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return &NotFoundError{Kind: "tool", ID: name}
	}
	return nil
}

// LogToolExecution appends one execution record.
func (s *Store) LogToolExecution(ctx context.Context, toolName, arguments, result string) error {
	_, err := s.exec(ctx, `
INSERT INTO tool_executions (tool_name, arguments, result, executed_at) VALUES (?, ?, ?, ?)`,
		toolName, arguments, result, now())
	if err != nil {
		return fmt.Errorf("failed to log tool execution: %w", err)
	}
	return nil
}

// RecentToolExecutions returns the last limit executions, newest first.
func (s *Store) RecentToolExecutions(ctx context.Context, limit int) ([]ToolExecution, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.query(ctx, `
SELECT id, tool_name, arguments, result, executed_at FROM tool_executions
ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tool executions: %w", err)
	}
	defer rows.Close()

	var execs []ToolExecution
	for rows.Next() {
		var e ToolExecution
		if err := rows.Scan(&e.ID, &e.ToolName, &e.Arguments, &e.Result, &e.ExecutedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tool execution: %w", err)
		}
		execs = append(execs, e)
	}
	return execs, rows.Err()
}
