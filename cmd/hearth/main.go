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

// Command hearth runs the on-device assistant runtime: an HTTP surface
// over local generation, document indexing, retrieval, and tools.
//
// Usage:
//
//	hearth serve --config config.yaml
//	hearth serve --preset development
//	hearth index /path/to/docs
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/hearth"
	"github.com/kadirpekel/hearth/pkg/config"
	"github.com/kadirpekel/hearth/pkg/logger"
)

// Exit codes: 0 normal, 1 startup precondition failure, 2 fatal runtime
// error.
const (
	exitPrecondition = 1
	exitRuntime      = 2
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the assistant runtime server."`
	Index   IndexCmd   `cmd:"" help:"Index a directory once and exit."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	Preset    string `help:"Config preset (development, production, testing)." default:"development"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:""`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, json)." default:""`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("hearth version %s\n", hearth.Version)
	return nil
}

// loadConfig loads the YAML config (or preset defaults) and applies CLI
// logging overrides.
func (cli *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cli.Config, cli.Preset)
	if err != nil {
		return nil, err
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.LogFile != "" {
		cfg.Logging.File = cli.LogFile
	}
	if cli.LogFormat != "" {
		cfg.Logging.Format = cli.LogFormat
	}
	return cfg, nil
}

// initLogging configures the process logger from config.
func initLogging(cfg *config.Config) (func(), error) {
	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	output := os.Stderr
	cleanup := func() {}
	if cfg.Logging.File != "" {
		file, closeFile, err := logger.OpenLogFile(cfg.Logging.File)
		if err != nil {
			return nil, err
		}
		output = file
		cleanup = closeFile
	}

	logger.Init(level, output, cfg.Logging.Format)
	return cleanup, nil
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("hearth"),
		kong.Description("hearth - on-device conversational AI runtime"),
		kong.UsageOnError(),
	)

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if _, ok := err.(*runtimeError); ok {
			os.Exit(exitRuntime)
		}
		os.Exit(exitPrecondition)
	}
}

// runtimeError marks failures that happen after a successful startup.
type runtimeError struct {
	err error
}

func (e *runtimeError) Error() string { return e.err.Error() }
func (e *runtimeError) Unwrap() error { return e.err }
