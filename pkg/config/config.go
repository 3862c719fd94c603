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

// Package config loads the runtime configuration from YAML with
// environment variable expansion, presets, and env overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/kadirpekel/hearth/pkg/catalog"
	"github.com/kadirpekel/hearth/pkg/embedder"
	"github.com/kadirpekel/hearth/pkg/llms"
	"github.com/kadirpekel/hearth/pkg/vector"
)

// Config is the full runtime configuration.
type Config struct {
	Server   ServerConfig          `yaml:"server"`
	Logging  LoggingConfig         `yaml:"logging"`
	Database catalog.Config        `yaml:"database"`
	Vector   vector.Config         `yaml:"vector"`
	Embedder embedder.OllamaConfig `yaml:"embedder"`
	LLM      llms.Config           `yaml:"llm"`
	Indexer  IndexerConfig         `yaml:"indexer"`
	Tools    ToolsConfig           `yaml:"tools"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// SetDefaults applies server defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// Address returns host:port.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// SetDefaults applies logging defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// Validate checks the logging configuration.
func (c *LoggingConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Level)
	}
	switch c.Format {
	case "", "simple", "verbose":
	default:
		return fmt.Errorf("invalid log format: %s (supported: simple, verbose)", c.Format)
	}
	return nil
}

// IndexerConfig configures indexing runs and the background reindexer.
type IndexerConfig struct {
	Workers              int  `yaml:"workers"`
	SweepIntervalSeconds int  `yaml:"sweep_interval_seconds"`
	ErrorBackoffSeconds  int  `yaml:"error_backoff_seconds"`
	Watch                bool `yaml:"watch"`
}

// SetDefaults applies indexer defaults.
func (c *IndexerConfig) SetDefaults() {
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.SweepIntervalSeconds == 0 {
		c.SweepIntervalSeconds = 300
	}
	if c.ErrorBackoffSeconds == 0 {
		c.ErrorBackoffSeconds = 60
	}
}

// Validate checks the indexer configuration.
func (c *IndexerConfig) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.SweepIntervalSeconds < 1 {
		return fmt.Errorf("sweep_interval_seconds must be positive, got %d", c.SweepIntervalSeconds)
	}
	return nil
}

// ToolsConfig configures built-in tool behavior.
type ToolsConfig struct {
	// ProtectedRoots are path prefixes delete_file refuses to touch.
	ProtectedRoots []string `yaml:"protected_roots"`
}

// SetDefaults applies tool defaults.
func (c *ToolsConfig) SetDefaults() {
	if len(c.ProtectedRoots) == 0 {
		c.ProtectedRoots = []string{"/System", "/usr", "/bin", "/sbin", "/etc"}
	}
}

// SetDefaults applies defaults across all sections.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Logging.SetDefaults()
	c.Database.SetDefaults()
	c.Vector.SetDefaults()
	c.Embedder.SetDefaults()
	c.LLM.SetDefaults()
	c.Indexer.SetDefaults()
	c.Tools.SetDefaults()
}

// Validate checks all sections.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Vector.Validate(); err != nil {
		return fmt.Errorf("vector: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Indexer.Validate(); err != nil {
		return fmt.Errorf("indexer: %w", err)
	}
	return nil
}

// Preset returns a named baseline configuration. Presets are a starting
// point; file and env settings layer on top.
func Preset(name string) (*Config, error) {
	cfg := &Config{}
	switch name {
	case "", "development":
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "verbose"
	case "production":
		cfg.Logging.Level = "warn"
		cfg.Logging.Format = "simple"
		cfg.Server.Host = "0.0.0.0"
	case "testing":
		cfg.Logging.Level = "error"
		cfg.Database.Driver = "sqlite"
		cfg.Database.DSN = "file::memory:?cache=shared&_foreign_keys=on"
	default:
		return nil, fmt.Errorf("unknown preset: %s (supported: development, production, testing)", name)
	}
	cfg.SetDefaults()
	return cfg, nil
}
