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

package indexer

// Progress statuses, in the order a successful run moves through them.
const (
	StatusScanning   = "scanning"
	StatusIndexing   = "indexing"
	StatusFinalizing = "finalizing"
	StatusComplete   = "complete"
	StatusError      = "error"
)

// Progress is one status event published during an indexing run. Progress
// is in [0, 1] and never decreases within a run.
type Progress struct {
	Status      string  `json:"status"`
	CurrentFile string  `json:"current_file,omitempty"`
	Progress    float64 `json:"progress"`
	Message     string  `json:"message,omitempty"`
}

// Sink consumes progress events. A nil Sink is valid and discards
// everything. Sinks must not block; slow consumers should buffer or drop.
type Sink func(Progress)

func (s Sink) emit(p Progress) {
	if s != nil {
		s(p)
	}
}

// ChannelSink adapts a buffered channel into a Sink that drops the oldest
// pending event instead of blocking when the consumer falls behind.
func ChannelSink(ch chan Progress) Sink {
	return func(p Progress) {
		for {
			select {
			case ch <- p:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	}
}
