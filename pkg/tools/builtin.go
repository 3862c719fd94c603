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
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// DefaultProtectedRoots are the path prefixes delete_file refuses when
// no roots are configured.
var DefaultProtectedRoots = []string{"/System", "/usr", "/bin", "/sbin", "/etc"}

// runFunc executes an external command; swapped out in tests.
type runFunc func(ctx context.Context, name string, args ...string) error

func execRun(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%s: %s", err, msg)
		}
		return err
	}
	return nil
}

// Builtins returns the closed set of built-in tools.
func Builtins(protectedRoots []string) []Tool {
	if len(protectedRoots) == 0 {
		protectedRoots = DefaultProtectedRoots
	}
	return []Tool{
		&openFileTool{run: execRun},
		&deleteFileTool{protected: protectedRoots},
		&openAppTool{run: execRun},
		&closeAppTool{run: execRun},
	}
}

// decodeArgs maps loosely typed model arguments onto a typed struct.
func decodeArgs(args map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

type openFileArgs struct {
	Path string `json:"path" jsonschema:"description=Path of the file to open"`
}

type openFileTool struct {
	run runFunc
}

func (t *openFileTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "open_file",
		Description: "Open a file with the system's default application.",
		Parameters:  reflectParameters(&openFileArgs{}),
		Builtin:     true,
	}
}

func (t *openFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	var a openFileArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.Path == "" {
		return "", fmt.Errorf("path is required")
	}

	path, err := filepath.Abs(expandHome(a.Path))
	if err != nil {
		return "", fmt.Errorf("invalid path %s: %w", a.Path, err)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("file not found: %s", path)
	}

	argv := openCommand(path)
	if err := t.run(ctx, argv[0], argv[1:]...); err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	return "Opened file: " + path, nil
}

type deleteFileArgs struct {
	Path string `json:"path" jsonschema:"description=Path of the file to delete"`
}

type deleteFileTool struct {
	protected []string
}

func (t *deleteFileTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "delete_file",
		Description: "Delete a single file. Refuses directories and anything under protected system paths.",
		Parameters:  reflectParameters(&deleteFileArgs{}),
		Builtin:     true,
	}
}

func (t *deleteFileTool) Execute(_ context.Context, args map[string]any) (string, error) {
	var a deleteFileArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.Path == "" {
		return "", fmt.Errorf("path is required")
	}

	path, err := filepath.Abs(expandHome(a.Path))
	if err != nil {
		return "", fmt.Errorf("invalid path %s: %w", a.Path, err)
	}

	// The safety checks come before any filesystem mutation; a refusal
	// has no side effects.
	for _, root := range t.protected {
		root = filepath.Clean(root)
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return "", fmt.Errorf("refusing to delete %s: protected system path", path)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("file not found: %s", path)
	}
	if info.IsDir() {
		return "", fmt.Errorf("refusing to delete %s: is a directory", path)
	}

	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return "Deleted file: " + path, nil
}

type appArgs struct {
	AppName string `json:"app_name" jsonschema:"description=Name of the application"`
}

type openAppTool struct {
	run runFunc
}

func (t *openAppTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "open_app",
		Description: "Launch an application by name.",
		Parameters:  reflectParameters(&appArgs{}),
		Builtin:     true,
	}
}

func (t *openAppTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	var a appArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.AppName == "" {
		return "", fmt.Errorf("app_name is required")
	}

	var argv []string
	switch runtime.GOOS {
	case "darwin":
		argv = []string{"open", "-a", a.AppName}
	case "windows":
		argv = []string{"cmd", "/C", "start", "", a.AppName}
	default:
		argv = []string{strings.ToLower(a.AppName)}
	}

	if err := t.run(ctx, argv[0], argv[1:]...); err != nil {
		return "", fmt.Errorf("failed to open %s: %w", a.AppName, err)
	}
	return "Opened application: " + a.AppName, nil
}

type closeAppTool struct {
	run runFunc
}

func (t *closeAppTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "close_app",
		Description: "Quit a running application by name.",
		Parameters:  reflectParameters(&appArgs{}),
		Builtin:     true,
	}
}

func (t *closeAppTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	var a appArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.AppName == "" {
		return "", fmt.Errorf("app_name is required")
	}

	var argv []string
	switch runtime.GOOS {
	case "darwin":
		argv = []string{"osascript", "-e", fmt.Sprintf("quit app %q", a.AppName)}
	case "windows":
		argv = []string{"taskkill", "/IM", a.AppName + ".exe"}
	default:
		argv = []string{"pkill", "-x", strings.ToLower(a.AppName)}
	}

	if err := t.run(ctx, argv[0], argv[1:]...); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", a.AppName, err)
	}
	return "Closed application: " + a.AppName, nil
}

// openCommand builds the platform command that opens a file with its
// default application.
func openCommand(path string) []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"open", path}
	case "windows":
		return []string{"cmd", "/C", "start", "", path}
	default:
		return []string{"xdg-open", path}
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
