package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// =============================================================================
// Performance Benchmarks - SQLiteStore
// =============================================================================
// Targets:
// - GetChunkByID: < 1ms per call
// - GetChunks (per document): < 10ms for 100 chunks
// - ReplaceChunks: > 1000 chunks/sec
// - LexicalSearch: < 5ms
// =============================================================================

// BenchmarkSQLiteStore_GetChunkByID benchmarks single chunk retrieval.
func BenchmarkSQLiteStore_GetChunkByID(b *testing.B) {
	store, chunkIDs, cleanup := setupBenchmarkStore(b, 1000)
	defer cleanup()

	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := store.GetChunkByID(ctx, chunkIDs[i%len(chunkIDs)])
		if err != nil {
			b.Fatalf("GetChunkByID failed: %v", err)
		}
	}
}

// BenchmarkSQLiteStore_GetChunks benchmarks per-document chunk retrieval.
func BenchmarkSQLiteStore_GetChunks(b *testing.B) {
	store, _, cleanup := setupBenchmarkStore(b, 1000)
	defer cleanup()

	ctx := context.Background()

	docs, err := store.ListDocuments(ctx, ListScope{Collection: "bench"}, OrderURIAscending, 1, 0)
	if err != nil || len(docs) == 0 {
		b.Fatalf("failed to list documents: %v", err)
	}
	documentID := docs[0].ID

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := store.GetChunks(ctx, documentID)
		if err != nil {
			b.Fatalf("GetChunks failed: %v", err)
		}
	}
}

// BenchmarkSQLiteStore_ReplaceChunks benchmarks batch chunk insertion.
func BenchmarkSQLiteStore_ReplaceChunks(b *testing.B) {
	batchSizes := []int{10, 50, 100, 500, 1000}

	for _, batchSize := range batchSizes {
		b.Run(fmt.Sprintf("batch_%d", batchSize), func(b *testing.B) {
			store, _, cleanup := setupBenchmarkStore(b, 0) // Start empty
			defer cleanup()

			ctx := context.Background()
			_, err := store.UpsertDocument(ctx, &Document{
				Docid: "benchdoc", Collection: "bench", RelPath: "bench.md",
				URI: "gno://bench/bench.md", Mime: "text/markdown",
				SourceMtime: time.Now(), MirrorHash: "m1", IngestVersion: 1,
			})
			if err != nil {
				b.Fatalf("failed to upsert document: %v", err)
			}
			doc, err := store.GetDocument(ctx, DocRef{Collection: "bench", RelPath: "bench.md"})
			if err != nil {
				b.Fatalf("failed to get document: %v", err)
			}

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				chunks := generateBenchmarkChunks(batchSize)
				if err := store.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
					b.Fatalf("ReplaceChunks failed: %v", err)
				}
			}

			b.ReportMetric(float64(batchSize*b.N)/b.Elapsed().Seconds(), "chunks/sec")
		})
	}
}

// BenchmarkSQLiteStore_LexicalSearch benchmarks BM25 lexical search.
func BenchmarkSQLiteStore_LexicalSearch(b *testing.B) {
	store, _, cleanup := setupBenchmarkStore(b, 1000)
	defer cleanup()

	ctx := context.Background()
	queries := []string{"handler", "process", "service", "manager", "controller"}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		query := queries[i%len(queries)]
		_, err := store.LexicalSearch(ctx, query, SearchFilter{}, 20)
		if err != nil {
			b.Fatalf("LexicalSearch failed: %v", err)
		}
	}
}

// BenchmarkSQLiteStore_ListDocuments benchmarks paginated document listing.
func BenchmarkSQLiteStore_ListDocuments(b *testing.B) {
	store, _, cleanup := setupBenchmarkStore(b, 1000)
	defer cleanup()

	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := store.ListDocuments(ctx, ListScope{Collection: "bench"}, OrderURIAscending, 100, 0)
		if err != nil {
			b.Fatalf("ListDocuments failed: %v", err)
		}
	}
}

// BenchmarkSQLiteStore_Concurrent benchmarks concurrent read access.
func BenchmarkSQLiteStore_Concurrent(b *testing.B) {
	store, chunkIDs, cleanup := setupBenchmarkStore(b, 1000)
	defer cleanup()

	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, err := store.GetChunkByID(ctx, chunkIDs[i%len(chunkIDs)])
			if err != nil {
				b.Fatalf("GetChunkByID failed: %v", err)
			}
			i++
		}
	})
}

// =============================================================================
// Benchmark Helpers
// =============================================================================

// setupBenchmarkStore creates a SQLite store with one document pre-populated
// with numChunks chunks, and returns the chunk ids assigned.
func setupBenchmarkStore(b *testing.B, numChunks int) (*SQLiteStore, []int64, func()) {
	b.Helper()

	tmpDir, err := os.MkdirTemp("", "bench-store-*")
	if err != nil {
		b.Fatalf("failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "index.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		b.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	_, err = store.UpsertDocument(ctx, &Document{
		Docid: "benchdoc", Collection: "bench", RelPath: "bench.md",
		URI: "gno://bench/bench.md", Title: "Benchmark Document",
		Mime: "text/markdown", SourceMtime: time.Now(), MirrorHash: "m1", IngestVersion: 1,
	})
	if err != nil {
		_ = store.Close()
		_ = os.RemoveAll(tmpDir)
		b.Fatalf("failed to upsert document: %v", err)
	}
	doc, err := store.GetDocument(ctx, DocRef{Collection: "bench", RelPath: "bench.md"})
	if err != nil {
		_ = store.Close()
		_ = os.RemoveAll(tmpDir)
		b.Fatalf("failed to get document: %v", err)
	}

	var chunkIDs []int64
	if numChunks > 0 {
		chunks := generateBenchmarkChunks(numChunks)
		if err := store.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
			_ = store.Close()
			_ = os.RemoveAll(tmpDir)
			b.Fatalf("failed to replace chunks: %v", err)
		}
		for _, c := range chunks {
			chunkIDs = append(chunkIDs, c.ID)
		}
	}

	return store, chunkIDs, func() {
		_ = store.Close()
		_ = os.RemoveAll(tmpDir)
	}
}

// generateBenchmarkChunks creates n chunks with varied prose content for
// lexical-search benchmarks.
func generateBenchmarkChunks(n int) []*Chunk {
	chunks := make([]*Chunk, n)
	symbolNames := []string{"handler", "process", "service", "manager", "controller"}

	for i := 0; i < n; i++ {
		name := symbolNames[i%len(symbolNames)]
		chunks[i] = &Chunk{
			Seq:       i,
			StartLine: (i % 50) * 20,
			EndLine:   (i%50)*20 + 20,
			Body:      generateBenchContent(name, 400+i%200),
		}
	}
	return chunks
}

// generateBenchContent creates prose content of roughly the given size,
// centered on keyword so lexical-search benchmarks have something to match.
func generateBenchContent(keyword string, size int) string {
	template := fmt.Sprintf("The %s component processes incoming requests and returns a response. ", keyword)
	content := ""
	for len(content) < size {
		content += template
	}
	if len(content) > size {
		content = content[:size]
	}
	return content
}
