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

// Package extract turns files into plain text for chunking and embedding.
// Extractors are selected per file by extension, highest priority first.
// Extraction never aborts the pipeline: a failing extractor yields a short
// failure text so the file still gets a stable place in the index.
package extract

import (
	"context"
	"fmt"
	"sort"
)

// Result is the extracted plain text plus extraction metadata.
type Result struct {
	Text     string
	Method   string
	Metadata map[string]string
}

// Extractor converts one class of files to plain text.
type Extractor interface {
	// Name identifies the extractor and names the extraction method in
	// result metadata.
	Name() string

	// CanExtract reports whether this extractor handles the given path.
	CanExtract(path string) bool

	// Extract produces plain text for the file.
	Extract(ctx context.Context, path string) (*Result, error)

	// Priority orders extractors; higher wins when several can handle a
	// path.
	Priority() int
}

// Registry dispatches files to extractors.
type Registry struct {
	extractors []Extractor
}

// NewRegistry returns a registry with the built-in extractors: text, code,
// pdf, office, and a catch-all fallback.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(&TextExtractor{})
	r.Register(&CodeExtractor{})
	r.Register(&PDFExtractor{})
	r.Register(&OfficeExtractor{})
	r.Register(&FallbackExtractor{})
	return r
}

// Register adds an extractor, keeping the list sorted by priority
// descending.
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
	sort.SliceStable(r.extractors, func(i, j int) bool {
		return r.extractors[i].Priority() > r.extractors[j].Priority()
	})
}

// Extract runs the highest-priority matching extractor. Failures degrade to
// a short failure text with method "<name>_failed" rather than an error, so
// callers can index the file and move on.
func (r *Registry) Extract(ctx context.Context, path string) *Result {
	for _, e := range r.extractors {
		if !e.CanExtract(path) {
			continue
		}

		res, err := e.Extract(ctx, path)
		if err != nil {
			return &Result{
				Text:     fmt.Sprintf("Failed to extract: %v", err),
				Method:   e.Name() + "_failed",
				Metadata: map[string]string{},
			}
		}
		return res
	}

	// The fallback accepts everything, so this is unreachable with the
	// built-in set.
	return &Result{
		Text:     fmt.Sprintf("Failed to extract: no extractor for %s", path),
		Method:   "none",
		Metadata: map[string]string{},
	}
}
