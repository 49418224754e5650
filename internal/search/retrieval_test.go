package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmickel/gno/internal/embed"
	"github.com/gmickel/gno/internal/store"
)

// mockEmbeddingPort is a deterministic, network-free embed.EmbeddingPort:
// it hashes the query text into a fixed-dimension vector so two equal
// strings embed identically without a real model.
type mockEmbeddingPort struct {
	dims      int
	available bool
	vecs      map[string][]float32
}

func (m *mockEmbeddingPort) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := m.vecs[text]; ok {
		return v, nil
	}
	return make([]float32, m.dims), nil
}

func (m *mockEmbeddingPort) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := m.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbeddingPort) Dimensions() int                  { return m.dims }
func (m *mockEmbeddingPort) ModelName() string                { return "mock-embedder" }
func (m *mockEmbeddingPort) Available(_ context.Context) bool { return m.available }
func (m *mockEmbeddingPort) Close() error                     { return nil }

// mockRerankPort returns its inputs in reverse order, so reorder effects
// are observable in tests without depending on real cross-encoder scores.
type mockRerankPort struct{ available bool }

func (m *mockRerankPort) Rerank(_ context.Context, _ string, documents []string, _ int) ([]embed.RerankResult, error) {
	out := make([]embed.RerankResult, len(documents))
	for i, d := range documents {
		out[i] = embed.RerankResult{Index: i, Score: float64(len(documents) - i), Text: d}
	}
	return out, nil
}
func (m *mockRerankPort) Available(_ context.Context) bool { return m.available }
func (m *mockRerankPort) Close() error                     { return nil }

// mockGenerationPort returns a canned completion, citing the first
// context block unconditionally.
type mockGenerationPort struct {
	available bool
	response  string
}

func (m *mockGenerationPort) Generate(_ context.Context, _ string, _ embed.GenerationOptions) (string, error) {
	if m.response != "" {
		return m.response, nil
	}
	return "The answer is here [1].", nil
}
func (m *mockGenerationPort) Available(_ context.Context) bool { return m.available }
func (m *mockGenerationPort) Close() error                     { return nil }

func newRetrievalTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seedDocument(t *testing.T, st store.Store, collection, relPath, title, body string) *store.Document {
	t.Helper()
	ctx := context.Background()
	doc := &store.Document{
		Collection: collection,
		RelPath:    relPath,
		URI:        "gno://" + collection + "/" + relPath,
		Title:      title,
		Mime:       "text/markdown",
		Ext:        ".md",
		MirrorHash: relPath + "-hash",
	}
	_, err := st.UpsertDocument(ctx, doc)
	require.NoError(t, err)

	stored, err := st.GetDocument(ctx, store.DocRef{URI: doc.URI})
	require.NoError(t, err)

	require.NoError(t, st.ReplaceChunks(ctx, stored.ID, []*store.Chunk{
		{DocumentID: stored.ID, Seq: 0, StartLine: 1, EndLine: 3, Body: body},
	}))
	return stored
}

func TestSearch_FindsSeededDocument(t *testing.T) {
	st := newRetrievalTestStore(t)
	seedDocument(t, st, "notes", "auth.md", "Auth", "Authentication is handled by middleware.")

	r := &Retrieval{Store: st}
	qr, err := r.Search(context.Background(), RetrievalOptions{QueryText: "authentication", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, ModeLexical, qr.Mode)
	require.NotEmpty(t, qr.Results)
	assert.Equal(t, "gno://notes/auth.md", qr.Results[0].URI)
	assert.Equal(t, ModeLexical, qr.Results[0].Mode)
}

func TestSearch_EmptyQuery_ReturnsValidationError(t *testing.T) {
	st := newRetrievalTestStore(t)
	r := &Retrieval{Store: st}
	_, err := r.Search(context.Background(), RetrievalOptions{QueryText: "  ", Limit: 10})
	require.Error(t, err)
}

func TestSearch_ZeroLimit_ReturnsValidationError(t *testing.T) {
	st := newRetrievalTestStore(t)
	r := &Retrieval{Store: st}
	_, err := r.Search(context.Background(), RetrievalOptions{QueryText: "auth", Limit: 0})
	require.Error(t, err)
}

func TestSearch_MinScoreOutOfRange_ReturnsValidationError(t *testing.T) {
	st := newRetrievalTestStore(t)
	r := &Retrieval{Store: st}
	_, err := r.Search(context.Background(), RetrievalOptions{QueryText: "auth", Limit: 10, MinScore: 1.5, HasMinScore: true})
	require.Error(t, err)
}

func TestSearch_NoMatches_ReturnsEmptyResults(t *testing.T) {
	st := newRetrievalTestStore(t)
	seedDocument(t, st, "notes", "auth.md", "Auth", "Authentication is handled by middleware.")

	r := &Retrieval{Store: st}
	qr, err := r.Search(context.Background(), RetrievalOptions{QueryText: "xyznonexistentterm", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, qr.Results)
}

func TestVSearch_NoEmbeddingPort_ReturnsModelUnavailable(t *testing.T) {
	st := newRetrievalTestStore(t)
	r := &Retrieval{Store: st}
	_, err := r.VSearch(context.Background(), RetrievalOptions{QueryText: "auth", Limit: 10})
	require.Error(t, err)
}

func TestVSearch_EmbeddingUnavailable_ReturnsModelUnavailable(t *testing.T) {
	st := newRetrievalTestStore(t)
	r := &Retrieval{Store: st, Embedding: &mockEmbeddingPort{dims: 4, available: false}}
	_, err := r.VSearch(context.Background(), RetrievalOptions{QueryText: "auth", Limit: 10})
	require.Error(t, err)
}

func TestVSearch_NoVectorsIndexed_ReturnsEmptyNotError(t *testing.T) {
	st := newRetrievalTestStore(t)
	seedDocument(t, st, "notes", "auth.md", "Auth", "Authentication is handled by middleware.")

	r := &Retrieval{Store: st, Embedding: &mockEmbeddingPort{dims: 4, available: true}}
	qr, err := r.VSearch(context.Background(), RetrievalOptions{QueryText: "auth", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, ModeVector, qr.Mode)
	assert.Empty(t, qr.Results)
}

func TestQuery_FallsBackToBM25OnlyWithoutEmbedding(t *testing.T) {
	st := newRetrievalTestStore(t)
	seedDocument(t, st, "notes", "auth.md", "Auth", "Authentication is handled by middleware.")

	r := &Retrieval{Store: st}
	qr, err := r.Query(context.Background(), RetrievalOptions{QueryText: "authentication", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, ModeHybrid, qr.Mode)
	require.NotEmpty(t, qr.Results)
}

func TestQuery_NoExpand_SkipsGenerationExpansion(t *testing.T) {
	st := newRetrievalTestStore(t)
	seedDocument(t, st, "notes", "auth.md", "Auth", "Authentication is handled by middleware.")

	gen := &mockGenerationPort{available: true}
	r := &Retrieval{Store: st, Generation: gen}
	qr, err := r.Query(context.Background(), RetrievalOptions{QueryText: "authentication", Limit: 10, NoExpand: true})
	require.NoError(t, err)
	require.NotEmpty(t, qr.Results)
}

func TestQuery_NoRerank_SkipsRerankPort(t *testing.T) {
	st := newRetrievalTestStore(t)
	seedDocument(t, st, "notes", "auth.md", "Auth", "Authentication is handled by middleware.")

	r := &Retrieval{Store: st, Rerank: &mockRerankPort{available: true}}
	qr, err := r.Query(context.Background(), RetrievalOptions{QueryText: "authentication", Limit: 10, NoRerank: true})
	require.NoError(t, err)
	require.NotEmpty(t, qr.Results)
}

func TestQuery_RerankEnabled_ReordersResults(t *testing.T) {
	st := newRetrievalTestStore(t)
	seedDocument(t, st, "notes", "a.md", "A", "authentication middleware handler one")
	seedDocument(t, st, "notes", "b.md", "B", "authentication middleware handler two")

	r := &Retrieval{Store: st, Rerank: &mockRerankPort{available: true}}
	qr, err := r.Query(context.Background(), RetrievalOptions{QueryText: "authentication", Limit: 10})
	require.NoError(t, err)
	require.Len(t, qr.Results, 2)
}

func TestAsk_NoGenerationPort_DegradesToRetrievalOnly(t *testing.T) {
	st := newRetrievalTestStore(t)
	seedDocument(t, st, "notes", "auth.md", "Auth", "Authentication is handled by middleware.")

	r := &Retrieval{Store: st}
	ar, err := r.Ask(context.Background(), RetrievalOptions{QueryText: "authentication", Limit: 10})
	require.NoError(t, err)
	assert.False(t, ar.AnswerGenerated)
	assert.Empty(t, ar.Answer)
	require.NotEmpty(t, ar.Results)
}

func TestAsk_WithGenerationPort_ReturnsAnswerAndCitations(t *testing.T) {
	st := newRetrievalTestStore(t)
	seedDocument(t, st, "notes", "auth.md", "Auth", "Authentication is handled by middleware.")

	r := &Retrieval{Store: st, Generation: &mockGenerationPort{available: true, response: "It works like this [1]."}}
	ar, err := r.Ask(context.Background(), RetrievalOptions{QueryText: "authentication", Limit: 10})
	require.NoError(t, err)
	assert.True(t, ar.AnswerGenerated)
	assert.Contains(t, ar.Answer, "[1]")
	require.Len(t, ar.Citations, 1)
	assert.Equal(t, 1, ar.Citations[0].N)
	assert.Equal(t, "gno://notes/auth.md", ar.Citations[0].URI)
}

func TestAsk_GenerationUnavailable_DegradesToRetrievalOnly(t *testing.T) {
	st := newRetrievalTestStore(t)
	seedDocument(t, st, "notes", "auth.md", "Auth", "Authentication is handled by middleware.")

	r := &Retrieval{Store: st, Generation: &mockGenerationPort{available: false}}
	ar, err := r.Ask(context.Background(), RetrievalOptions{QueryText: "authentication", Limit: 10})
	require.NoError(t, err)
	assert.False(t, ar.AnswerGenerated)
}

func TestBindCitations_IgnoresOutOfRangeAndDuplicateMarkers(t *testing.T) {
	results := []Result{
		{Docid: "#a", URI: "gno://notes/a.md", SnippetStart: 1, SnippetEnd: 2},
	}
	citations := bindCitations("See [1] and also [1] and [99].", results)
	require.Len(t, citations, 1)
	assert.Equal(t, 1, citations[0].N)
}

func TestBestByDocument_KeepsHighestScoreLowestSeqTieBreak(t *testing.T) {
	hits := []docResult{
		{docID: 1, chunkSeq: 2, score: 0.5},
		{docID: 1, chunkSeq: 0, score: 0.5},
		{docID: 1, chunkSeq: 1, score: 0.9},
	}
	best := bestByDocument(hits)
	require.Contains(t, best, int64(1))
	assert.Equal(t, 0.9, best[1].score)
}

func TestClamp01_BoundsValues(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-0.5))
	assert.Equal(t, 1.0, clamp01(1.5))
	assert.Equal(t, 0.3, clamp01(0.3))
}

func TestBM25ToSimilarity_NegatesRawScore(t *testing.T) {
	assert.Equal(t, 2.5, bm25ToSimilarity(-2.5))
}
