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

// Package metrics exposes process-wide Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FilesIndexed counts files that completed the indexing pipeline,
	// by outcome ("ok" or "error").
	FilesIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hearth",
		Subsystem: "indexer",
		Name:      "files_indexed_total",
		Help:      "Files that completed the indexing pipeline.",
	}, []string{"outcome"})

	// ChunksEmbedded counts chunks written to the vector store.
	ChunksEmbedded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hearth",
		Subsystem: "indexer",
		Name:      "chunks_embedded_total",
		Help:      "Chunks embedded and upserted into the vector store.",
	})

	// IndexJobsActive tracks currently running indexing jobs.
	IndexJobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hearth",
		Subsystem: "indexer",
		Name:      "jobs_active",
		Help:      "Indexing jobs currently running.",
	})

	// GenerateRequests counts generation streams, by outcome.
	GenerateRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hearth",
		Subsystem: "generate",
		Name:      "requests_total",
		Help:      "Generation streams started, by outcome.",
	}, []string{"outcome"})

	// ToolExecutions counts tool dispatches, by tool name and outcome.
	ToolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hearth",
		Subsystem: "tools",
		Name:      "executions_total",
		Help:      "Tool dispatches, by tool and outcome.",
	}, []string{"tool", "outcome"})

	// RetrievalQueries counts retrieval requests.
	RetrievalQueries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hearth",
		Subsystem: "retrieval",
		Name:      "queries_total",
		Help:      "Retrieval queries served.",
	})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
