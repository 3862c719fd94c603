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
	"fmt"
	"log/slog"

	"github.com/kadirpekel/hearth/pkg/catalog"
	"github.com/kadirpekel/hearth/pkg/config"
	"github.com/kadirpekel/hearth/pkg/embedder"
	"github.com/kadirpekel/hearth/pkg/generate"
	"github.com/kadirpekel/hearth/pkg/indexer"
	"github.com/kadirpekel/hearth/pkg/llms"
	"github.com/kadirpekel/hearth/pkg/retrieval"
	"github.com/kadirpekel/hearth/pkg/runtime"
	"github.com/kadirpekel/hearth/pkg/server"
	"github.com/kadirpekel/hearth/pkg/tools"
	"github.com/kadirpekel/hearth/pkg/vector"
)

// app holds the wired process-wide services with explicit lifecycle.
type app struct {
	cfg      *config.Config
	catalog  *catalog.Store
	vectors  vector.Store
	embedder *embedder.OllamaEmbedder
	provider llms.Provider
	indexer  *indexer.Service
	server   *server.Server
}

// buildApp wires the full service stack from config. The LLM handle is
// lazy: the provider only opens connections on first use, so startup
// succeeds without a running model backend.
func buildApp(cfg *config.Config) (*app, error) {
	cat, err := catalog.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	vectors, err := vector.New(cfg.Vector)
	if err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	emb := embedder.NewOllamaEmbedder(cfg.Embedder)

	provider, err := llms.New(cfg.LLM)
	if err != nil {
		_ = vectors.Close()
		_ = cat.Close()
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}

	retriever := retrieval.New(cat, emb, vectors)
	registry := tools.NewBuiltinRegistry(cfg.Tools.ProtectedRoots)
	indexSvc := indexer.New(cat, vectors, emb, cfg.Indexer.Workers)

	srv, err := server.New(cfg.Server, server.Deps{
		Catalog:   cat,
		Vectors:   vectors,
		Embedder:  emb,
		Retriever: retriever,
		Generator: generate.New(provider, cat, retriever, cfg.LLM.ContextWindow, cfg.LLM.Stops, retrieval.DefaultContextBudget),
		Machine:   runtime.NewMachine(provider, cat, retriever, registry, retrieval.DefaultContextBudget),
		Indexer:   indexSvc,
		Registry:  registry,
	})
	if err != nil {
		_ = vectors.Close()
		_ = cat.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		catalog:  cat,
		vectors:  vectors,
		embedder: emb,
		provider: provider,
		indexer:  indexSvc,
		server:   srv,
	}, nil
}

// close releases every held resource, newest first.
func (a *app) close() {
	if err := a.provider.Close(); err != nil {
		slog.Warn("Failed to close LLM provider", "error", err)
	}
	if err := a.embedder.Close(); err != nil {
		slog.Warn("Failed to close embedder", "error", err)
	}
	if err := a.vectors.Close(); err != nil {
		slog.Warn("Failed to close vector store", "error", err)
	}
	if err := a.catalog.Close(); err != nil {
		slog.Warn("Failed to close catalog", "error", err)
	}
}
