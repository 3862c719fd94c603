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

package llms

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// MinResponseTokens is the floor for the generation budget even when
	// the prompt nearly fills the context window.
	MinResponseTokens = 64
	// MaxResponseTokens caps a single response.
	MaxResponseTokens = 512
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// EstimateTokens counts prompt tokens with the cl100k_base encoding,
// falling back to a word-count heuristic when the encoding data is
// unavailable (it is downloaded on first use).
func EstimateTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err == nil {
			encoding = enc
		}
	})

	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	return int(float64(len(strings.Fields(text))) * 0.75)
}

// ResponseBudget computes the max tokens for a response: whatever the
// context window leaves after the prompt, clamped to
// [MinResponseTokens, MaxResponseTokens].
func ResponseBudget(prompt string, contextWindow int) int {
	budget := contextWindow - EstimateTokens(prompt)
	if budget < MinResponseTokens {
		return MinResponseTokens
	}
	if budget > MaxResponseTokens {
		return MaxResponseTokens
	}
	return budget
}
