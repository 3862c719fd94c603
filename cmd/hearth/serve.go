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

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kadirpekel/hearth/pkg/indexer"
)

// ServeCmd starts the runtime server with the background reindexer.
type ServeCmd struct {
	Host string `help:"Listening host (overrides config)."`
	Port int    `help:"Listening port (overrides config)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	cleanup, err := initLogging(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	app, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer app.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	// Background reindexer, with optional filesystem watching.
	var watcher *indexer.Watcher
	if cfg.Indexer.Watch {
		watcher, err = indexer.NewWatcher()
		if err != nil {
			slog.Warn("Filesystem watching unavailable, relying on sweeps", "error", err)
		} else {
			dirs, err := app.catalog.ListDirectories(ctx, true)
			if err != nil {
				return err
			}
			for _, dir := range dirs {
				if err := watcher.Add(dir.ID, dir.Path); err != nil {
					slog.Warn("Failed to watch directory", "path", dir.Path, "error", err)
				}
			}
			go watcher.Run(ctx)
		}
	}

	reindexer := indexer.NewReindexer(
		app.indexer,
		app.catalog,
		watcher,
		time.Duration(cfg.Indexer.SweepIntervalSeconds)*time.Second,
		time.Duration(cfg.Indexer.ErrorBackoffSeconds)*time.Second,
	)
	go reindexer.Run(ctx)

	if err := app.server.Start(ctx); err != nil {
		return &runtimeError{err: err}
	}
	return nil
}
