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

// Package chunker splits extracted text into overlapping windows, the unit
// of embedding. The splitter is recursive: it prefers the coarsest
// separator that occurs in the text and falls back to finer ones until
// every piece fits the configured chunk size.
package chunker

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kadirpekel/hearth/pkg/merkle"
)

// Config controls chunk sizing. Sizes are in bytes; offsets in produced
// chunks are byte offsets into the original text.
type Config struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// SetDefaults applies the standard chunk sizing.
func (c *Config) SetDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 200
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap cannot be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// Chunk is one window of the original text. Text is always the exact slice
// original[StartChar:EndChar], so offsets can reconstruct it.
type Chunk struct {
	Index     int
	Text      string
	StartChar int
	EndChar   int
	Hash      string
}

// Separator sets per content class, coarsest first. The empty string is the
// terminal separator: split anywhere.
var (
	markdownSeparators = []string{"\n# ", "\n## ", "\n### ", "\n\n", "\n", ". ", " ", ""}
	pythonSeparators   = []string{"\nclass ", "\ndef ", "\n\tdef ", "\n\n", "\n", ". ", " ", ""}
	jsSeparators       = []string{"\nfunction ", "\nclass ", "\nconst ", "\nlet ", "\nvar ", "\n\n", "\n", " ", ""}
	defaultSeparators  = []string{"\n\n", "\n", ". ", " ", ""}
)

// Splitter splits text with a fixed separator hierarchy.
type Splitter struct {
	cfg        Config
	separators []string
}

// New creates a splitter with the default separator set.
func New(cfg Config) *Splitter {
	cfg.SetDefaults()
	return &Splitter{cfg: cfg, separators: defaultSeparators}
}

// ForFile creates a splitter whose separators match the file's content
// type: heading-aware for markdown, syntax-aware for Python and the JS/TS
// family, plain recursive otherwise.
func ForFile(cfg Config, path string) *Splitter {
	cfg.SetDefaults()

	var seps []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		seps = markdownSeparators
	case ".py":
		seps = pythonSeparators
	case ".js", ".ts", ".jsx", ".tsx":
		seps = jsSeparators
	default:
		seps = defaultSeparators
	}

	return &Splitter{cfg: cfg, separators: seps}
}

// span is a half-open byte range into the original text.
type span struct {
	start, end int
}

// Split produces the chunk sequence for text. StartChar is monotonically
// non-decreasing across the sequence; consecutive chunks overlap by up to
// the configured overlap.
func (s *Splitter) Split(text string) []Chunk {
	if text == "" {
		return nil
	}

	atoms := s.atoms(text, 0, s.separators)
	spans := s.merge(atoms)

	chunks := make([]Chunk, 0, len(spans))
	for i, sp := range spans {
		chunkText := text[sp.start:sp.end]
		chunks = append(chunks, Chunk{
			Index:     i,
			Text:      chunkText,
			StartChar: sp.start,
			EndChar:   sp.end,
			Hash:      merkle.TextHash(chunkText),
		})
	}
	return chunks
}

// atoms recursively cuts text into candidate pieces no larger than the
// chunk size, using the coarsest separator present at each level.
func (s *Splitter) atoms(text string, base int, seps []string) []span {
	if len(text) <= s.cfg.ChunkSize {
		if len(text) == 0 {
			return nil
		}
		return []span{{base, base + len(text)}}
	}

	sep, rest := pickSeparator(text, seps)
	if sep == "" {
		return s.hardSplit(text, base)
	}

	// Boundaries sit at each separator occurrence. The separator bytes stay
	// attached to the following piece so chunks start at heading or
	// definition boundaries, and the spans cover the text with no gaps.
	boundaries := []int{0}
	pos := 0
	for {
		idx := strings.Index(text[pos:], sep)
		if idx < 0 {
			break
		}
		b := pos + idx
		if b > 0 {
			boundaries = append(boundaries, b)
		}
		pos = b + len(sep)
	}
	boundaries = append(boundaries, len(text))

	var out []span
	for i := 0; i+1 < len(boundaries); i++ {
		start, end := boundaries[i], boundaries[i+1]
		if end > start {
			out = append(out, s.atoms(text[start:end], base+start, rest)...)
		}
	}
	return out
}

// hardSplit cuts at chunk-size boundaries, respecting rune boundaries.
func (s *Splitter) hardSplit(text string, base int) []span {
	var out []span
	start := 0
	for start < len(text) {
		end := start + s.cfg.ChunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
			if end == start {
				end = start + s.cfg.ChunkSize
			}
		}
		out = append(out, span{base + start, base + end})
		start = end
	}
	return out
}

// merge greedily packs atoms into chunks up to the chunk size, then backs
// up whole atoms to produce the configured overlap.
func (s *Splitter) merge(atoms []span) []span {
	if len(atoms) == 0 {
		return nil
	}

	var out []span
	i := 0
	for i < len(atoms) {
		start := atoms[i].start
		j := i
		for j+1 < len(atoms) && atoms[j+1].end-start <= s.cfg.ChunkSize {
			j++
		}
		end := atoms[j].end
		out = append(out, span{start, end})

		if j+1 >= len(atoms) {
			break
		}

		next := j + 1
		for next > i+1 && end-atoms[next-1].start <= s.cfg.ChunkOverlap {
			next--
		}
		i = next
	}
	return out
}

func pickSeparator(text string, seps []string) (string, []string) {
	for i, sep := range seps {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, seps[i+1:]
		}
	}
	return "", nil
}
