package store

import "fmt"

// schemaSQL returns the DDL for every table and trigger the store needs.
// embeddingDim sizes the vec0 virtual table; tokenizer configures the
// FTS5 table's tokenizer clause (immutable once recorded, see
// migrations.go and kv_state's fts_tokenizer sentinel).
func schemaSQL(embeddingDim int, tokenizer string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS kv_state (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY,
    docid TEXT NOT NULL,
    collection TEXT NOT NULL,
    rel_path TEXT NOT NULL,
    uri TEXT NOT NULL,
    title TEXT,
    mime TEXT NOT NULL,
    ext TEXT,
    source_mtime DATETIME NOT NULL,
    source_size INTEGER NOT NULL,
    source_hash TEXT NOT NULL,
    mirror_hash TEXT NOT NULL,
    language_hint TEXT,
    ingest_version INTEGER NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(collection, rel_path)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
CREATE INDEX IF NOT EXISTS idx_documents_docid ON documents(docid);
CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_uri ON documents(uri);

CREATE TABLE IF NOT EXISTS chunks (
    id INTEGER PRIMARY KEY,
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    start_line INTEGER NOT NULL,
    end_line INTEGER NOT NULL,
    body TEXT NOT NULL,
    code_lang TEXT
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);

-- Vector embeddings via sqlite-vec. Rows are keyed by chunk_id only;
-- mixing vectors across embedding models is prevented at the
-- application layer by scoping vectorSearch to one model_id's
-- embeddings table entries (see embeddings below).
CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
    chunk_id INTEGER PRIMARY KEY,
    embedding float[%d]
);

CREATE TABLE IF NOT EXISTS embeddings (
    chunk_id INTEGER NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
    model_id TEXT NOT NULL,
    produced_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (chunk_id, model_id)
);
CREATE INDEX IF NOT EXISTS idx_embeddings_model ON embeddings(model_id);

-- One row per chunk (rowid = chunks.id), with filepath/title
-- denormalized from the owning document so snippets and rankings
-- don't need a join back to documents for the common case.
CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
    filepath,
    title,
    body,
    content='',
    tokenize='%s'
);

CREATE TABLE IF NOT EXISTS doc_tags (
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    tag TEXT NOT NULL,
    source TEXT NOT NULL,
    UNIQUE(document_id, tag)
);
CREATE INDEX IF NOT EXISTS idx_doc_tags_tag ON doc_tags(tag);

CREATE TABLE IF NOT EXISTS doc_links (
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    target_ref TEXT NOT NULL,
    target_ref_norm TEXT NOT NULL,
    target_anchor TEXT,
    target_collection TEXT,
    link_type TEXT NOT NULL,
    link_text TEXT,
    start_line INTEGER NOT NULL,
    start_col INTEGER NOT NULL,
    end_line INTEGER NOT NULL,
    end_col INTEGER NOT NULL,
    source TEXT NOT NULL,
    UNIQUE(document_id, start_line, start_col, link_type, source)
);
CREATE INDEX IF NOT EXISTS idx_doc_links_target ON doc_links(target_ref_norm);
CREATE INDEX IF NOT EXISTS idx_doc_links_document ON doc_links(document_id);

INSERT OR IGNORE INTO schema_version (version) VALUES (%d);
`, embeddingDim, tokenizer, CurrentSchemaVersion)
}

// ftsRebuildSQL drops and recreates documents_fts with a new tokenizer,
// then repopulates it from the documents/chunks tables. Used by
// RebuildFTS when an operator explicitly rebuilds after a tokenizer
// change (spec.md §4.1 forbids silently opening under a changed
// tokenizer).
func ftsRebuildSQL(tokenizer string) string {
	return fmt.Sprintf(`
DROP TABLE IF EXISTS documents_fts;
CREATE VIRTUAL TABLE documents_fts USING fts5(
    filepath,
    title,
    body,
    content='',
    tokenize='%s'
);
`, tokenizer)
}
