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

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode"
)

// userToolTimeout bounds one subprocess invocation. Tools are expected
// to be short-lived; nothing here is cancellable mid-flight.
const userToolTimeout = 30 * time.Second

// Definition is a user-submitted tool: a command line to run plus the
// metadata the model needs to call it. Untrusted logic always runs out
// of process; the host never executes submitted source text.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
	Command     string          `json:"command"`
}

// ValidationResult lists everything wrong (blocking) and everything
// questionable (non-blocking) about a submitted definition.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate structurally checks a definition. Errors block registration;
// warnings do not.
func Validate(def Definition) ValidationResult {
	result := ValidationResult{Errors: []string{}, Warnings: []string{}}

	if def.Name == "" {
		result.Errors = append(result.Errors, "tool name is required")
	} else if !isIdentifier(def.Name) {
		result.Errors = append(result.Errors, fmt.Sprintf("tool name %q is not a valid identifier", def.Name))
	}
	for _, builtin := range Builtins(nil) {
		if def.Name == builtin.GetInfo().Name {
			result.Errors = append(result.Errors, fmt.Sprintf("tool name %q shadows a built-in tool", def.Name))
		}
	}

	if def.Command == "" {
		result.Errors = append(result.Errors, "command is required")
	} else if _, err := splitCommand(def.Command); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("command does not parse: %v", err))
	}

	if def.Description == "" {
		result.Warnings = append(result.Warnings, "description is empty; the model cannot decide when to call this tool")
	}

	seen := make(map[string]bool)
	for _, p := range def.Parameters {
		if p.Name == "" {
			result.Errors = append(result.Errors, "parameter with empty name")
			continue
		}
		if !isIdentifier(p.Name) {
			result.Errors = append(result.Errors, fmt.Sprintf("parameter name %q is not a valid identifier", p.Name))
		}
		if seen[p.Name] {
			result.Errors = append(result.Errors, fmt.Sprintf("duplicate parameter %q", p.Name))
		}
		seen[p.Name] = true

		switch p.Type {
		case "", "string", "number", "integer", "boolean", "array", "object":
		default:
			result.Errors = append(result.Errors, fmt.Sprintf("parameter %q has unknown type %q", p.Name, p.Type))
		}
		if p.Description == "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("parameter %q has no description", p.Name))
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// SubprocessTool runs a user-defined command with the call arguments as
// JSON on stdin. Stdout, trimmed, is the tool result.
type SubprocessTool struct {
	def Definition
}

// NewSubprocessTool validates and wraps a definition.
func NewSubprocessTool(def Definition) (*SubprocessTool, error) {
	if result := Validate(def); !result.Valid {
		return nil, &RegistryError{
			Action:  "validate",
			Tool:    def.Name,
			Message: strings.Join(result.Errors, "; "),
		}
	}
	return &SubprocessTool{def: def}, nil
}

func (t *SubprocessTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.def.Name,
		Description: t.def.Description,
		Parameters:  t.def.Parameters,
		Builtin:     false,
	}
}

func (t *SubprocessTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	argv, err := splitCommand(t.def.Command)
	if err != nil {
		return "", fmt.Errorf("invalid command: %w", err)
	}

	input, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode arguments: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, userToolTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("tool %s failed: %s", t.def.Name, msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// splitCommand tokenizes a command line, honoring single and double
// quotes. It rejects unterminated quotes and empty commands.
func splitCommand(command string) ([]string, error) {
	var argv []string
	var current strings.Builder
	var quote rune
	inToken := false

	for _, r := range command {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case unicode.IsSpace(r):
			if inToken {
				argv = append(argv, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if inToken {
		argv = append(argv, current.String())
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return argv, nil
}

func isIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case unicode.IsLetter(r) || r == '_':
		case unicode.IsDigit(r) && i > 0:
		default:
			return false
		}
	}
	return s != ""
}
