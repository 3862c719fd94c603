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

// Package server is the streaming HTTP/WS surface: it translates client
// payloads into calls on retrieval, generation, indexing, and the tool
// state machine, and back-pressures token streams to the client.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kadirpekel/hearth/pkg/catalog"
	"github.com/kadirpekel/hearth/pkg/config"
	"github.com/kadirpekel/hearth/pkg/embedder"
	"github.com/kadirpekel/hearth/pkg/generate"
	"github.com/kadirpekel/hearth/pkg/indexer"
	"github.com/kadirpekel/hearth/pkg/metrics"
	"github.com/kadirpekel/hearth/pkg/retrieval"
	"github.com/kadirpekel/hearth/pkg/runtime"
	"github.com/kadirpekel/hearth/pkg/tools"
	"github.com/kadirpekel/hearth/pkg/vector"
)

// Deps are the services the HTTP surface fronts.
type Deps struct {
	Catalog   *catalog.Store
	Vectors   vector.Store
	Embedder  embedder.Embedder
	Retriever *retrieval.Retriever
	Generator *generate.Service
	Machine   *runtime.Machine
	Indexer   *indexer.Service
	Registry  *tools.Registry
}

// Server is the HTTP surface.
type Server struct {
	cfg    config.ServerConfig
	deps   Deps
	server *http.Server
	logger *slog.Logger
}

// New creates a server over the given services.
func New(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if deps.Registry == nil {
		deps.Registry = tools.NewBuiltinRegistry(nil)
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: slog.Default(),
	}
	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     s.routes(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 30 * time.Second,
	}
	return s, nil
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Address returns the listen address.
func (s *Server) Address() string { return s.server.Addr }

// Start serves until the context is cancelled, then shuts down
// gracefully, waiting for in-flight streams up to a grace period.
func (s *Server) Start(ctx context.Context) error {
	if err := s.loadUserTools(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	s.logger.Info("HTTP server shutting down")
	return s.server.Shutdown(shutdownCtx)
}

// loadUserTools registers stored user-defined tools at startup.
func (s *Server) loadUserTools(ctx context.Context) error {
	stored, err := s.deps.Catalog.ListUserTools(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to load user tools: %w", err)
	}
	for _, ut := range stored {
		def, err := storedDefinition(ut)
		if err != nil {
			s.logger.Warn("Skipping stored tool with bad definition", "tool", ut.Name, "error", err)
			continue
		}
		tool, err := tools.NewSubprocessTool(def)
		if err != nil {
			s.logger.Warn("Skipping stored tool", "tool", ut.Name, "error", err)
			continue
		}
		s.deps.Registry.Replace(tool)
	}
	return nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(s.logging)
	r.Use(s.cors)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/generate", s.handleGenerate)
	r.Post("/generate-sse", s.handleGenerateSSE)
	r.Post("/save-message", s.handleSaveMessage)

	r.Route("/tools", func(r chi.Router) {
		r.Get("/", s.handleListTools)
		r.Post("/", s.handleCreateTool)
		r.Delete("/{name}", s.handleDeleteTool)
		r.Post("/execute", s.handleToolsExecute)
		r.Post("/stream", s.handleToolsStream)
	})

	r.Route("/rag", func(r chi.Router) {
		r.Route("/directories", func(r chi.Router) {
			r.Get("/", s.handleListDirectories)
			r.Post("/", s.handleCreateDirectory)
			r.Delete("/{id}", s.handleDeleteDirectory)
			r.Post("/{id}/scan", s.handleScanDirectory)
			r.Post("/{id}/index", s.handleIndexDirectory)
			r.Get("/{id}/index-stream", s.handleIndexStream)
		})
		r.Route("/conversations/{cid}/context", func(r chi.Router) {
			r.Get("/", s.handleListContexts)
			r.Post("/", s.handleLinkContext)
			r.Delete("/{did}", s.handleUnlinkContext)
		})
		r.Post("/retrieve", s.handleRetrieve)
		r.Post("/clear-index", s.handleClearIndex)
		r.Get("/index-stats", s.handleIndexStats)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleUpdateSettings)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// logging records each request. The ResponseWriter is not wrapped so
// http.Flusher and http.Hijacker keep working for streams and
// websockets.
func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// cors applies the configured origin allowlist.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			for _, allowed := range s.cfg.CORSOrigins {
				if allowed == "*" || allowed == origin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
