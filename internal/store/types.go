// Package store provides the embedded relational store (SQLite + FTS5
// + sqlite-vec), plus the alternate Bleve/HNSW index backends, for all
// ingested collections, documents, chunks, tags, links, and embeddings.
package store

import (
	"context"
	"fmt"
	"time"
)

// Order controls result ordering for list/tag operations.
type Order string

const (
	OrderURIAscending Order = "uri_asc"
	OrderCountDesc    Order = "count_desc"
)

// TagSource distinguishes where a DocTag came from.
type TagSource string

const (
	TagSourceFrontmatter TagSource = "frontmatter"
	TagSourceUser        TagSource = "user"
)

// LinkType distinguishes the markup a DocLink was extracted from.
type LinkType string

const (
	LinkTypeWiki     LinkType = "wiki"
	LinkTypeMarkdown LinkType = "markdown"
)

// LinkSource distinguishes how a DocLink entered the store.
type LinkSource string

const (
	LinkSourceParsed    LinkSource = "parsed"
	LinkSourceUser      LinkSource = "user"
	LinkSourceSuggested LinkSource = "suggested"
)

// kv_state keys used for tokenizer immutability, schema bookkeeping,
// and resumable ingestion checkpoints.
const (
	StateKeyFTSTokenizer = "fts_tokenizer"

	StateKeyCheckpointStage         = "checkpoint_stage"
	StateKeyCheckpointTotal         = "checkpoint_total"
	StateKeyCheckpointEmbedded      = "checkpoint_embedded"
	StateKeyCheckpointTimestamp     = "checkpoint_timestamp"
	StateKeyCheckpointEmbedderModel = "checkpoint_embedder_model"
)

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

// Document is one row per ingested file (spec.md §3).
type Document struct {
	ID            int64
	Docid         string // hex prefix of MirrorHash, no leading '#'
	Collection    string
	RelPath       string
	URI           string // gno://<collection>/<relPath>
	Title         string
	Mime          string
	Ext           string
	SourceMtime   time.Time
	SourceSize    int64
	SourceHash    string
	MirrorHash    string
	LanguageHint  string
	IngestVersion int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Chunk is one row per contiguous piece of a document's canonical markdown.
type Chunk struct {
	ID         int64
	DocumentID int64
	Seq        int
	StartLine  int // 1-based, inclusive
	EndLine    int // 1-based, inclusive
	Body       string
	CodeLang   string // set when the chunk begins inside fenced code
}

// DocTag is a (document, tag) pair, source-tracked so that frontmatter
// tags can be rewritten on re-ingest while user tags survive.
type DocTag struct {
	DocumentID int64
	Tag        string
	Source     TagSource
}

// TagCount aggregates tag usage across documents, for getTags.
type TagCount struct {
	Tag   string
	Count int
}

// DocLink is an extracted outbound link from a document's markdown.
type DocLink struct {
	DocumentID       int64
	TargetRef        string
	TargetRefNorm    string
	TargetAnchor     string
	TargetCollection string
	LinkType         LinkType
	LinkText         string
	StartLine        int
	StartCol         int
	EndLine          int // end exclusive
	EndCol           int // end exclusive
	Source           LinkSource
}

// EmbeddingRecord tracks which (chunk, model) pairs have a stored vector.
type EmbeddingRecord struct {
	ChunkID    int64
	ModelID    string
	ProducedAt time.Time
}

// ListScope selects the documents returned by ListDocuments: either a
// collection name, or a gno:// URI prefix within one.
type ListScope struct {
	Collection string
	PathPrefix string // relPath prefix, empty means the whole collection
}

// SearchFilter narrows lexicalSearch/vectorSearch/listDocuments.
type SearchFilter struct {
	Collections  []string
	LanguageHint string
}

// LexicalHit is one result row from lexicalSearch.
type LexicalHit struct {
	ChunkID    int64
	DocumentID int64
	BM25Score  float64 // raw bm25() score, more negative = more relevant
	StartLine  int
	EndLine    int
}

// VectorHit is one result row from vectorSearch.
type VectorHit struct {
	ChunkID    int64
	DocumentID int64
	Similarity float64 // cosine similarity in [-1,1], higher is better
}

// DocRef identifies a reference argument accepted by getDocument/get:
// a docid ("#abc123"), a gno:// URI, or a collection-relative path,
// optionally with a ":line" suffix.
type DocRef struct {
	Docid      string
	URI        string
	Collection string
	RelPath    string
	Line       int // 0 means unset
}

// String renders ref in whichever form it was populated with, for
// error messages.
func (r DocRef) String() string {
	switch {
	case r.Docid != "":
		return r.Docid
	case r.URI != "":
		return r.URI
	case r.Collection != "" || r.RelPath != "":
		return fmt.Sprintf("%s/%s", r.Collection, r.RelPath)
	default:
		return "<empty ref>"
	}
}

// Store is the durable storage contract from spec.md §4.1: a full-text
// index, an auxiliary vector index, and transactional document/chunk
// persistence, backed by one SQLite file per installation.
type Store interface {
	// UpsertDocument inserts or replaces the row keyed by
	// (collection, relPath), refreshes the FTS row, and — if
	// mirrorHash changed — deletes obsolete chunks/embeddings.
	// Returns the assigned docid.
	UpsertDocument(ctx context.Context, doc *Document) (string, error)

	// ReplaceChunks deletes then inserts doc's chunks in one transaction.
	ReplaceChunks(ctx context.Context, documentID int64, chunks []*Chunk) error

	// SetEmbedding inserts or replaces the vector for (chunkID, modelID).
	SetEmbedding(ctx context.Context, chunkID int64, modelID string, vector []float32) error

	// DeleteDocument cascades to chunks, embeddings, tags, and links.
	DeleteDocument(ctx context.Context, documentID int64) error

	// ReplaceTags replaces all tags of the given source for a document,
	// preserving tags of other sources (frontmatter rewrite preserves
	// user tags).
	ReplaceTags(ctx context.Context, documentID int64, source TagSource, tags []string) error

	// ReplaceLinks replaces all links of the given source for a document.
	ReplaceLinks(ctx context.Context, documentID int64, source LinkSource, links []*DocLink) error

	// LexicalSearch runs BM25 ranking against the FTS table.
	LexicalSearch(ctx context.Context, query string, filter SearchFilter, limit int) ([]LexicalHit, error)

	// VectorSearch finds nearest neighbors by cosine similarity over
	// modelID's embeddings.
	VectorSearch(ctx context.Context, modelID string, queryVector []float32, filter SearchFilter, limit int) ([]VectorHit, error)

	// ListDocuments lists documents within scope, ordered per order.
	ListDocuments(ctx context.Context, scope ListScope, order Order, limit, offset int) ([]*Document, error)

	// GetDocument resolves ref (docid, URI, or collection/relPath[:line]).
	GetDocument(ctx context.Context, ref DocRef) (*Document, error)

	// GetDocumentByID fetches a document by its internal row id.
	GetDocumentByID(ctx context.Context, id int64) (*Document, error)

	// GetChunks returns all chunks of a document, ordered by seq.
	GetChunks(ctx context.Context, documentID int64) ([]*Chunk, error)

	// GetChunkByID fetches a single chunk.
	GetChunkByID(ctx context.Context, chunkID int64) (*Chunk, error)

	// GetTags aggregates tags by count, optionally filtered by collection.
	GetTags(ctx context.Context, collection string, order Order) ([]TagCount, error)

	// OrphanDocuments returns documents of collection whose relPath is
	// not present in liveRelPaths, for post-walk orphan cleanup.
	OrphanDocuments(ctx context.Context, collection string, liveRelPaths map[string]struct{}) ([]*Document, error)

	// TokenizerInUse returns the tokenizer recorded at schema creation.
	TokenizerInUse(ctx context.Context) (string, error)

	// RebuildFTS drops and recreates the FTS table with a new
	// tokenizer, repopulating it from the documents/chunks tables.
	RebuildFTS(ctx context.Context, tokenizer string) error

	// State is a small key-value store for checkpoints and sentinels.
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	// Stats reports row counts for `gno stats`.
	Stats(ctx context.Context) (*IndexStats, error)

	Close() error
}

// IndexStats provides statistics about the store for `gno stats`.
type IndexStats struct {
	CollectionCount int
	DocumentCount   int
	ChunkCount      int
	EmbeddingCount  int
	TagCount        int
	LinkCount       int
	SizeBytes       int64
}

// ErrDimensionMismatch indicates vector dimension mismatch against the
// active embedding model.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run 'gno update --reembed' to rebuild vectors)", e.Expected, e.Got)
}

// --- alternate backend contracts (Bleve+HNSW pairing, §B) ---

// BM25Document is a document indexed by the alternate Bleve BM25 backend.
type BM25Document struct {
	ID      string // chunk id, as a string key
	Content string
}

// BM25Result is a single result from the alternate Bleve BM25 backend.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// BM25IndexStats provides statistics about the alternate BM25 index.
type BM25IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// BM25Index is the alternate keyword-search backend (Bleve), selected
// via SearchConfig.BM25Backend when the configured tokenizer calls for
// Bleve's custom analyzers (e.g. trigram, snowball).
type BM25Index interface {
	Index(ctx context.Context, docs []*BM25Document) error
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)
	Delete(ctx context.Context, docIDs []string) error
	AllIDs() ([]string, error)
	Stats() *BM25IndexStats
	Save(path string) error
	Load(path string) error
	Close() error
}

// BM25Config configures the alternate BM25 index.
type BM25Config struct {
	K1             float64
	B              float64
	StopWords      []string
	MinTokenLength int
}

// DefaultBM25Config returns default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultProseStopWords,
		MinTokenLength: 2,
	}
}

// DefaultProseStopWords contains common English stop words filtered
// from the alternate BM25 backend's custom analyzer.
var DefaultProseStopWords = []string{
	"the", "a", "an", "and", "or", "but", "is", "are", "was", "were",
	"of", "to", "in", "on", "for", "with", "as", "by", "at", "this",
	"that", "it", "be", "has", "have", "had",
}

// VectorResult is a single result from the alternate HNSW vector backend.
type VectorResult struct {
	ID       string
	Distance float32
	Score    float32
}

// VectorStoreConfig configures the alternate HNSW vector backend.
type VectorStoreConfig struct {
	Dimensions     int
	Quantization   string
	Metric         string
	M              int
	EfConstruction int
	EfSearch       int
}

// DefaultVectorStoreConfig returns sensible defaults for the alternate
// HNSW vector backend.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Quantization:   "f16",
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore is the alternate vector-search backend (coder/hnsw),
// paired with BM25Index when SearchConfig.BM25Backend selects Bleve.
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	AllIDs() []string
	Contains(id string) bool
	Count() int
	Save(path string) error
	Load(path string) error
	Close() error
}
