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
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kadirpekel/hearth/pkg/catalog"
	"github.com/kadirpekel/hearth/pkg/indexer"
)

// IndexCmd registers a directory (idempotently) and runs one full index
// pass, printing progress to stderr and the final stats to stdout.
type IndexCmd struct {
	Path    string   `arg:"" help:"Directory to index." type:"path"`
	Include []string `help:"Include glob patterns (e.g. *.md,*.pdf)."`
	Exclude []string `help:"Exclude glob patterns."`
}

func (c *IndexCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}

	cleanup, err := initLogging(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if info, err := os.Stat(c.Path); err != nil || !info.IsDir() {
		return fmt.Errorf("path is not a readable directory: %s", c.Path)
	}

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
		cancel()
	}()

	dir, err := app.catalog.CreateDirectory(ctx, catalog.Directory{
		Path:            c.Path,
		IncludePatterns: c.Include,
		ExcludePatterns: c.Exclude,
	})
	if err != nil {
		return err
	}

	stats, err := app.indexer.Index(ctx, dir.ID, func(p indexer.Progress) {
		if p.CurrentFile != "" {
			fmt.Fprintf(os.Stderr, "[%3.0f%%] %s\n", p.Progress*100, p.CurrentFile)
		}
	})
	if err != nil {
		return &runtimeError{err: err}
	}

	fmt.Printf("Indexed %d/%d files, %d chunks\n", stats.IndexedFiles, stats.TotalFiles, stats.TotalChunks)
	if len(stats.Errors) > 0 {
		fmt.Printf("%d files failed:\n", len(stats.Errors))
		for _, e := range stats.Errors {
			fmt.Printf("  %s\n", e)
		}
	}
	fmt.Printf("Merkle root: %s\n", stats.MerkleRoot)
	return nil
}
