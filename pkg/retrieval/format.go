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

package retrieval

import (
	"fmt"
	"strings"
)

// DefaultContextBudget caps how many characters of retrieved text go
// into the prompt.
const DefaultContextBudget = 4000

const contextHeader = "Based on the following relevant information from your indexed files:\n"

// FormatContext renders retrieved chunks as prompt context. Chunks are
// wrapped with their source path and appended in order until the
// character budget is spent; a chunk that would overflow the budget is
// dropped along with everything after it. Returns empty string for no
// results.
func FormatContext(results []Result, budget int) string {
	if len(results) == 0 {
		return ""
	}
	if budget <= 0 {
		budget = DefaultContextBudget
	}

	var b strings.Builder
	b.WriteString(contextHeader)

	for _, r := range results {
		block := fmt.Sprintf("\n---\nSource: %s (chunk %d)\n%s\n---", r.FilePath, r.ChunkIndex+1, r.Content)
		if b.Len()+len(block) > budget {
			break
		}
		b.WriteString(block)
	}

	// Budget spent before the first chunk fit.
	if b.Len() == len(contextHeader) {
		return ""
	}
	return b.String()
}
