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

package vector

import "fmt"

// Config selects and configures a vector store provider.
type Config struct {
	Provider string        `yaml:"provider"`
	Chromem  ChromemConfig `yaml:"chromem"`
	Qdrant   QdrantConfig  `yaml:"qdrant"`
}

// SetDefaults applies the embedded provider as the default.
func (c *Config) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "chromem"
	}
	c.Chromem.SetDefaults()
	c.Qdrant.SetDefaults()
}

// Validate checks the provider selection.
func (c *Config) Validate() error {
	switch c.Provider {
	case "", "chromem", "qdrant":
		return nil
	default:
		return fmt.Errorf("unsupported vector provider: %s (supported: chromem, qdrant)", c.Provider)
	}
}

// New creates the configured store.
func New(cfg Config) (Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case "chromem":
		return NewChromemStore(cfg.Chromem)
	case "qdrant":
		return NewQdrantStore(cfg.Qdrant)
	default:
		return nil, fmt.Errorf("unsupported vector provider: %s", cfg.Provider)
	}
}
