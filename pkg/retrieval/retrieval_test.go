package retrieval

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/hearth/pkg/catalog"
	"github.com/kadirpekel/hearth/pkg/vector"
)

type fixedEmbedder struct {
	vec []float32
}

func (e *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.vec, nil
}

func (e *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vec
	}
	return out, nil
}

func (e *fixedEmbedder) Dimension() int { return len(e.vec) }
func (e *fixedEmbedder) Model() string  { return "fixed" }
func (e *fixedEmbedder) Close() error   { return nil }

type cannedStore struct {
	vector.Store
	hits       []vector.Result
	lastTopK   int
	lastFilter *vector.Filter
}

func (s *cannedStore) Query(ctx context.Context, vec []float32, topK int, filter *vector.Filter) ([]vector.Result, error) {
	s.lastTopK = topK
	s.lastFilter = filter
	return s.hits, nil
}

func newTestRetriever(t *testing.T, hits []vector.Result) (*Retriever, *cannedStore, *catalog.Store) {
	t.Helper()
	cat, err := catalog.Open(catalog.Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "retrieval.db") + "?_foreign_keys=on",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	store := &cannedStore{hits: hits}
	return New(cat, &fixedEmbedder{vec: []float32{0.1, 0.2}}, store), store, cat
}

func TestResolveDirectoriesExplicitWins(t *testing.T) {
	r, _, cat := newTestRetriever(t, nil)
	ctx := context.Background()

	dir, err := cat.CreateDirectory(ctx, catalog.Directory{Path: "/data/docs"})
	require.NoError(t, err)
	_, err = cat.LinkContext(ctx, "conv-1", dir.ID)
	require.NoError(t, err)

	ids, err := r.ResolveDirectories(ctx, "conv-1", []string{"explicit-id"})
	require.NoError(t, err)
	assert.Equal(t, []string{"explicit-id"}, ids)
}

func TestResolveDirectoriesFromConversationContexts(t *testing.T) {
	r, _, cat := newTestRetriever(t, nil)
	ctx := context.Background()

	dir, err := cat.CreateDirectory(ctx, catalog.Directory{Path: "/data/docs"})
	require.NoError(t, err)
	_, err = cat.LinkContext(ctx, "conv-1", dir.ID)
	require.NoError(t, err)

	ids, err := r.ResolveDirectories(ctx, "conv-1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{dir.ID}, ids)
}

func TestResolveDirectoriesWithoutConversationIsEmpty(t *testing.T) {
	r, _, _ := newTestRetriever(t, nil)

	ids, err := r.ResolveDirectories(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestRetrieveFiltersByMinScore(t *testing.T) {
	hits := []vector.Result{
		{ID: "a", Score: 0.9, Content: "kept", Payload: map[string]any{
			vector.PayloadFilePath:   "a.md",
			vector.PayloadChunkIndex: float64(0),
		}},
		{ID: "b", Score: 0.1, Content: "dropped", Payload: map[string]any{}},
	}
	r, store, _ := newTestRetriever(t, hits)

	results, err := r.Retrieve(context.Background(), "query", []string{"dir-1"})
	require.NoError(t, err)

	// Default settings: top_k=5, min_score=0.3.
	assert.Equal(t, 5, store.lastTopK)
	require.NotNil(t, store.lastFilter)
	assert.Equal(t, []string{"dir-1"}, store.lastFilter.DirectoryIDs)

	require.Len(t, results, 1)
	assert.Equal(t, "kept", results[0].Content)
	assert.Equal(t, "a.md", results[0].FilePath)
	assert.Equal(t, 0, results[0].ChunkIndex)
}

func TestRetrieveWithOptionsOverridesSettings(t *testing.T) {
	hits := []vector.Result{
		{ID: "a", Score: 0.1, Content: "low score kept", Payload: map[string]any{}},
	}
	r, store, _ := newTestRetriever(t, hits)

	zero := 0.0
	results, err := r.RetrieveWithOptions(context.Background(), "query", []string{"dir-1"}, 2, &zero)
	require.NoError(t, err)

	assert.Equal(t, 2, store.lastTopK)
	assert.Len(t, results, 1)
}

func TestRetrieveWithoutScopeHasNoFilter(t *testing.T) {
	r, store, _ := newTestRetriever(t, nil)

	_, err := r.Retrieve(context.Background(), "query", nil)
	require.NoError(t, err)
	assert.Nil(t, store.lastFilter)
}

func TestInfoDedupesSources(t *testing.T) {
	info := Info([]Result{
		{FilePath: "a.md", Score: 0.9},
		{FilePath: "b.md", Score: 0.8},
		{FilePath: "a.md", Score: 0.7},
	})

	assert.Equal(t, 3, info.ChunksUsed)
	assert.Equal(t, []string{"a.md", "b.md"}, info.Sources)
	assert.Equal(t, 0.9, info.TopScore)
}

func TestInfoEmpty(t *testing.T) {
	info := Info(nil)
	assert.Equal(t, 0, info.ChunksUsed)
	assert.Empty(t, info.Sources)
	assert.Zero(t, info.TopScore)
}

func TestFormatContext(t *testing.T) {
	out := FormatContext([]Result{
		{Content: "first chunk", FilePath: "notes.md", ChunkIndex: 0},
		{Content: "second chunk", FilePath: "notes.md", ChunkIndex: 1},
	}, 0)

	assert.Contains(t, out, "Based on the following relevant information")
	assert.Contains(t, out, "Source: notes.md (chunk 1)\nfirst chunk")
	assert.Contains(t, out, "Source: notes.md (chunk 2)\nsecond chunk")
}

func TestFormatContextStopsAtBudget(t *testing.T) {
	results := []Result{
		{Content: "short", FilePath: "a.md"},
		{Content: "this one does not fit in what remains of the budget", FilePath: "b.md"},
	}

	out := FormatContext(results, len(contextHeader)+60)
	assert.Contains(t, out, "a.md")
	assert.NotContains(t, out, "b.md")
}

func TestFormatContextTooSmallForAnyChunk(t *testing.T) {
	out := FormatContext([]Result{{Content: "chunk", FilePath: "a.md"}}, 10)
	assert.Empty(t, out)
}

func TestFormatContextEmptyResults(t *testing.T) {
	assert.Empty(t, FormatContext(nil, 0))
}
