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

package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true,
	".json": true, ".yaml": true, ".yml": true,
	".csv": true, ".tsv": true, ".log": true,
}

var codeExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".java": true, ".c": true, ".cpp": true, ".h": true, ".hpp": true,
	".go": true, ".rs": true, ".rb": true, ".sh": true,
}

// TextExtractor reads plain-text files, detecting the encoding from a BOM
// when one is present.
type TextExtractor struct{}

func (e *TextExtractor) Name() string  { return "text" }
func (e *TextExtractor) Priority() int { return 50 }

func (e *TextExtractor) CanExtract(path string) bool {
	return textExtensions[strings.ToLower(filepath.Ext(path))]
}

func (e *TextExtractor) Extract(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	text, encoding := decodeText(data)
	return &Result{
		Text:     text,
		Method:   e.Name(),
		Metadata: map[string]string{"encoding": encoding},
	}, nil
}

// decodeText detects BOMs for UTF-8 and UTF-16, falling back to a Latin-1
// reinterpretation when the bytes are not valid UTF-8.
func decodeText(data []byte) (string, string) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return string(data[3:]), "utf-8-sig"
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return decodeUTF16(data[2:], false), "utf-16-le"
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return decodeUTF16(data[2:], true), "utf-16-be"
	}

	if utf8.Valid(data) {
		return string(data), "utf-8"
	}

	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes), "latin-1"
}

func decodeUTF16(data []byte, bigEndian bool) string {
	if len(data)%2 == 1 {
		data = data[:len(data)-1]
	}

	units := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		if bigEndian {
			units = append(units, uint16(data[i])<<8|uint16(data[i+1]))
		} else {
			units = append(units, uint16(data[i+1])<<8|uint16(data[i]))
		}
	}
	return string(utf16.Decode(units))
}

// CodeExtractor reads source files, prepending a file marker that improves
// embedding-time recall of which file a chunk came from.
type CodeExtractor struct{}

func (e *CodeExtractor) Name() string  { return "code" }
func (e *CodeExtractor) Priority() int { return 50 }

func (e *CodeExtractor) CanExtract(path string) bool {
	return codeExtensions[strings.ToLower(filepath.Ext(path))]
}

func (e *CodeExtractor) Extract(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	text, _ := decodeText(data)
	return &Result{
		Text:     fmt.Sprintf("# File: %s\n\n%s", path, text),
		Method:   e.Name(),
		Metadata: map[string]string{},
	}, nil
}

// FallbackExtractor accepts any file and reads it as best-effort text,
// dropping bytes that do not decode.
type FallbackExtractor struct{}

func (e *FallbackExtractor) Name() string             { return "fallback" }
func (e *FallbackExtractor) Priority() int            { return 0 }
func (e *FallbackExtractor) CanExtract(_ string) bool { return true }

func (e *FallbackExtractor) Extract(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return &Result{
		Text:     strings.ToValidUTF8(string(data), ""),
		Method:   e.Name(),
		Metadata: map[string]string{"extraction_method": "fallback"},
	}, nil
}
