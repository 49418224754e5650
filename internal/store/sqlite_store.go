package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	amerrors "github.com/gmickel/gno/internal/errors"
)

func init() {
	sqlite_vec.Auto()
}

// DefaultCacheSizeKB is the SQLite page cache size used when
// SQLiteStoreConfig.CacheSizeKB is left at zero.
const DefaultCacheSizeKB = 65536 // 64MB

// SQLiteStoreConfig configures a SQLiteStore beyond the defaults
// NewSQLiteStore applies.
type SQLiteStoreConfig struct {
	Tokenizer    string
	EmbeddingDim int
	CacheSizeKB  int
}

// DefaultStoreConfig returns the configuration NewSQLiteStore uses.
func DefaultStoreConfig() SQLiteStoreConfig {
	return SQLiteStoreConfig{
		Tokenizer:    "unicode61",
		EmbeddingDim: 768,
		CacheSizeKB:  DefaultCacheSizeKB,
	}
}

// SQLiteStore implements Store on top of mattn/go-sqlite3, sqlite-vec,
// and FTS5: one SQLite file per installation, WAL journal mode, a
// single writer, and concurrent readers.
type SQLiteStore struct {
	mu     sync.Mutex // serializes writers; WAL allows concurrent readers through db's pool
	db     *sql.DB
	path   string
	config SQLiteStoreConfig
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a store at dbPath using default
// configuration (unicode61 tokenizer, 768-dim embeddings, 64MB cache).
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(dbPath, DefaultStoreConfig())
}

// NewSQLiteStoreWithConfig opens or creates a store at dbPath with the
// given configuration. If dbPath is empty, opens an in-memory store
// (for tests).
func NewSQLiteStoreWithConfig(dbPath string, cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.Tokenizer == "" {
		cfg.Tokenizer = "unicode61"
	}
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 768
	}
	if cfg.CacheSizeKB == 0 {
		cfg.CacheSizeKB = DefaultCacheSizeKB
	}

	var dsn string
	if dbPath == "" {
		dsn = ":memory:?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000"
	} else {
		dir := filepath.Dir(dbPath)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, amerrors.IOError(fmt.Sprintf("creating store directory %s", dir), err)
			}
		}
		dsn = dbPath + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, amerrors.CorruptError("opening store database", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, amerrors.CorruptError("pinging store database", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA cache_size = -%d", cfg.CacheSizeKB)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting cache_size pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting synchronous pragma: %w", err)
	}

	if _, err := db.Exec(schemaSQL(cfg.EmbeddingDim, cfg.Tokenizer)); err != nil {
		_ = db.Close()
		return nil, amerrors.CorruptError("creating store schema", err)
	}

	// A single writer prevents SQLITE_BUSY under WAL; readers use the
	// pool concurrently.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &SQLiteStore{db: db, path: dbPath, config: cfg}

	ctx := context.Background()
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if err := s.checkTokenizer(ctx, cfg.Tokenizer); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// DB returns the underlying *sql.DB for advanced/administrative queries
// (e.g. `gno doctor`, `gno compact`).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// --- Document operations ---

func (s *SQLiteStore) UpsertDocument(ctx context.Context, doc *Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existingMirrorHash string
	var existingID int64
	row := s.db.QueryRowContext(ctx,
		`SELECT id, mirror_hash FROM documents WHERE collection = ? AND rel_path = ?`,
		doc.Collection, doc.RelPath)
	_ = row.Scan(&existingID, &existingMirrorHash) // sql.ErrNoRows means "new document", fine

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (docid, collection, rel_path, uri, title, mime, ext,
			source_mtime, source_size, source_hash, mirror_hash, language_hint, ingest_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, rel_path) DO UPDATE SET
			docid = excluded.docid,
			uri = excluded.uri,
			title = excluded.title,
			mime = excluded.mime,
			ext = excluded.ext,
			source_mtime = excluded.source_mtime,
			source_size = excluded.source_size,
			source_hash = excluded.source_hash,
			mirror_hash = excluded.mirror_hash,
			language_hint = excluded.language_hint,
			ingest_version = excluded.ingest_version,
			updated_at = CURRENT_TIMESTAMP
	`, doc.Docid, doc.Collection, doc.RelPath, doc.URI, doc.Title, doc.Mime, doc.Ext,
		doc.SourceMtime, doc.SourceSize, doc.SourceHash, doc.MirrorHash, doc.LanguageHint, doc.IngestVersion)
	if err != nil {
		return "", amerrors.Wrap(amerrors.ErrCodeCorruptStore, err)
	}

	if existingID != 0 && existingMirrorHash != "" && existingMirrorHash != doc.MirrorHash {
		if err := s.deleteChunksAndDerived(ctx, existingID); err != nil {
			return "", err
		}
	}

	return doc.Docid, nil
}

func (s *SQLiteStore) deleteChunksAndDerived(ctx context.Context, documentID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM vec_chunks WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)
		`, documentID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM embeddings WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)
		`, documentID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM documents_fts WHERE rowid IN (SELECT id FROM chunks WHERE document_id = ?)
		`, documentID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
			return err
		}
		return nil
	})
}

func (s *SQLiteStore) ReplaceChunks(ctx context.Context, documentID int64, chunks []*Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.getDocumentByIDInternal(ctx, documentID)
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM documents_fts WHERE rowid IN (SELECT id FROM chunks WHERE document_id = ?)
		`, documentID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM vec_chunks WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)
		`, documentID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM embeddings WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)
		`, documentID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
			return err
		}

		insertChunk, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (document_id, seq, start_line, end_line, body, code_lang)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer insertChunk.Close()

		insertFTS, err := tx.PrepareContext(ctx, `
			INSERT INTO documents_fts (rowid, filepath, title, body) VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer insertFTS.Close()

		for _, c := range chunks {
			res, err := insertChunk.ExecContext(ctx, documentID, c.Seq, c.StartLine, c.EndLine, c.Body, nullableString(c.CodeLang))
			if err != nil {
				return err
			}
			chunkID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			c.ID = chunkID
			c.DocumentID = documentID

			if _, err := insertFTS.ExecContext(ctx, chunkID, doc.RelPath, doc.Title, c.Body); err != nil {
				return err
			}
		}

		return nil
	})
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *SQLiteStore) SetEmbedding(ctx context.Context, chunkID int64, modelID string, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(vector) != s.config.EmbeddingDim {
		return ErrDimensionMismatch{Expected: s.config.EmbeddingDim, Got: len(vector)}
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)",
			chunkID, serializeFloat32(vector)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO embeddings (chunk_id, model_id, produced_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(chunk_id, model_id) DO UPDATE SET produced_at = CURRENT_TIMESTAMP
		`, chunkID, modelID); err != nil {
			return err
		}
		return nil
	})
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, documentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM documents_fts WHERE rowid IN (SELECT id FROM chunks WHERE document_id = ?)
		`, documentID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM vec_chunks WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)
		`, documentID); err != nil {
			return err
		}
		// chunks, embeddings, doc_tags, doc_links cascade via FK on documents delete
		if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", documentID); err != nil {
			return err
		}
		return nil
	})
}

func (s *SQLiteStore) ReplaceTags(ctx context.Context, documentID int64, source TagSource, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM doc_tags WHERE document_id = ? AND source = ?", documentID, source); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO doc_tags (document_id, tag, source) VALUES (?, ?, ?)
			ON CONFLICT(document_id, tag) DO UPDATE SET source = excluded.source
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, tag := range tags {
			if _, err := stmt.ExecContext(ctx, documentID, tag, source); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ReplaceLinks(ctx context.Context, documentID int64, source LinkSource, links []*DocLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM doc_links WHERE document_id = ? AND source = ?", documentID, source); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO doc_links (document_id, target_ref, target_ref_norm, target_anchor,
				target_collection, link_type, link_text, start_line, start_col, end_line, end_col, source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, l := range links {
			if _, err := stmt.ExecContext(ctx, documentID, l.TargetRef, l.TargetRefNorm, l.TargetAnchor,
				l.TargetCollection, l.LinkType, l.LinkText, l.StartLine, l.StartCol, l.EndLine, l.EndCol, source); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- Search ---

func (s *SQLiteStore) LexicalSearch(ctx context.Context, query string, filter SearchFilter, limit int) ([]LexicalHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, amerrors.ValidationError("query cannot be empty", nil)
	}

	args := []any{query}
	where := "documents_fts MATCH ?"
	if len(filter.Collections) > 0 {
		placeholders := make([]string, len(filter.Collections))
		for i, c := range filter.Collections {
			placeholders[i] = "?"
			args = append(args, c)
		}
		where += fmt.Sprintf(" AND d.collection IN (%s)", strings.Join(placeholders, ","))
	}
	if filter.LanguageHint != "" {
		where += " AND d.language_hint = ?"
		args = append(args, filter.LanguageHint)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT f.rowid, c.document_id, bm25(documents_fts) AS score, c.start_line, c.end_line
		FROM documents_fts f
		JOIN chunks c ON c.id = f.rowid
		JOIN documents d ON d.id = c.document_id
		WHERE %s
		ORDER BY score
		LIMIT ?
	`, where), args...)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return nil, amerrors.ValidationError("invalid query syntax", err)
		}
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var hits []LexicalHit
	for rows.Next() {
		var h LexicalHit
		if err := rows.Scan(&h.ChunkID, &h.DocumentID, &h.BM25Score, &h.StartLine, &h.EndLine); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *SQLiteStore) VectorSearch(ctx context.Context, modelID string, queryVector []float32, filter SearchFilter, limit int) ([]VectorHit, error) {
	if len(queryVector) != s.config.EmbeddingDim {
		return nil, ErrDimensionMismatch{Expected: s.config.EmbeddingDim, Got: len(queryVector)}
	}

	args := []any{serializeFloat32(queryVector), limit * 4, modelID}
	where := "e.model_id = ?"
	if len(filter.Collections) > 0 {
		placeholders := make([]string, len(filter.Collections))
		for i, c := range filter.Collections {
			placeholders[i] = "?"
			args = append(args, c)
		}
		where += fmt.Sprintf(" AND d.collection IN (%s)", strings.Join(placeholders, ","))
	}
	if filter.LanguageHint != "" {
		where += " AND d.language_hint = ?"
		args = append(args, filter.LanguageHint)
	}
	args = append(args, limit)

	// Oversample the vec0 KNN scan (limit*4) then filter/re-limit by
	// model_id and collection, since vec0 itself can't express those
	// predicates in the MATCH clause.
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT v.chunk_id, v.distance, c.document_id
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.chunk_id
		JOIN documents d ON d.id = c.document_id
		JOIN embeddings e ON e.chunk_id = v.chunk_id
		WHERE v.embedding MATCH ? AND k = ? AND %s
		ORDER BY v.distance
		LIMIT ?
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var hits []VectorHit
	for rows.Next() {
		var h VectorHit
		var distance float64
		if err := rows.Scan(&h.ChunkID, &distance, &h.DocumentID); err != nil {
			return nil, err
		}
		h.Similarity = 1.0 - distance/2.0
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// --- Listing / retrieval ---

func (s *SQLiteStore) ListDocuments(ctx context.Context, scope ListScope, order Order, limit, offset int) ([]*Document, error) {
	where := "collection = ?"
	args := []any{scope.Collection}
	if scope.PathPrefix != "" {
		where += " AND rel_path LIKE ? ESCAPE '\\'"
		args = append(args, escapeLike(scope.PathPrefix)+"%")
	}

	orderBy := "rel_path ASC"
	if order == OrderCountDesc {
		orderBy = "source_size DESC"
	}

	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, docid, collection, rel_path, uri, title, mime, ext,
			source_mtime, source_size, source_hash, mirror_hash, language_hint,
			ingest_version, created_at, updated_at
		FROM documents WHERE %s ORDER BY %s LIMIT ? OFFSET ?
	`, where, orderBy), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) GetDocument(ctx context.Context, ref DocRef) (*Document, error) {
	var row *sql.Row
	switch {
	case ref.Docid != "":
		row = s.db.QueryRowContext(ctx, docSelectSQL+" WHERE docid = ?", strings.TrimPrefix(ref.Docid, "#"))
	case ref.URI != "":
		row = s.db.QueryRowContext(ctx, docSelectSQL+" WHERE uri = ?", ref.URI)
	case ref.Collection != "" && ref.RelPath != "":
		row = s.db.QueryRowContext(ctx, docSelectSQL+" WHERE collection = ? AND rel_path = ?", ref.Collection, ref.RelPath)
	default:
		return nil, amerrors.ValidationError("document reference must set docid, uri, or collection+relPath", nil)
	}

	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, amerrors.NotFoundError(fmt.Sprintf("document %q not found", ref.String()), nil)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

const docSelectSQL = `
	SELECT id, docid, collection, rel_path, uri, title, mime, ext,
		source_mtime, source_size, source_hash, mirror_hash, language_hint,
		ingest_version, created_at, updated_at
	FROM documents`

func (s *SQLiteStore) GetDocumentByID(ctx context.Context, id int64) (*Document, error) {
	return s.getDocumentByIDInternal(ctx, id)
}

func (s *SQLiteStore) getDocumentByIDInternal(ctx context.Context, id int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx, docSelectSQL+" WHERE id = ?", id)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, amerrors.NotFoundError(fmt.Sprintf("document id %d not found", id), nil)
	}
	return d, err
}

// rowScanner abstracts *sql.Row/*sql.Rows for scanDocument.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	d := &Document{}
	var title, ext, languageHint sql.NullString
	if err := row.Scan(&d.ID, &d.Docid, &d.Collection, &d.RelPath, &d.URI, &title, &d.Mime, &ext,
		&d.SourceMtime, &d.SourceSize, &d.SourceHash, &d.MirrorHash, &languageHint,
		&d.IngestVersion, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Title = title.String
	d.Ext = ext.String
	d.LanguageHint = languageHint.String
	return d, nil
}

func (s *SQLiteStore) GetChunks(ctx context.Context, documentID int64) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, seq, start_line, end_line, body, code_lang
		FROM chunks WHERE document_id = ? ORDER BY seq
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		c := &Chunk{}
		var codeLang sql.NullString
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Seq, &c.StartLine, &c.EndLine, &c.Body, &codeLang); err != nil {
			return nil, err
		}
		c.CodeLang = codeLang.String
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStore) GetChunkByID(ctx context.Context, chunkID int64) (*Chunk, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, seq, start_line, end_line, body, code_lang
		FROM chunks WHERE id = ?
	`, chunkID)
	c := &Chunk{}
	var codeLang sql.NullString
	if err := row.Scan(&c.ID, &c.DocumentID, &c.Seq, &c.StartLine, &c.EndLine, &c.Body, &codeLang); err != nil {
		if err == sql.ErrNoRows {
			return nil, amerrors.NotFoundError(fmt.Sprintf("chunk id %d not found", chunkID), nil)
		}
		return nil, err
	}
	c.CodeLang = codeLang.String
	return c, nil
}

func (s *SQLiteStore) GetTags(ctx context.Context, collection string, order Order) ([]TagCount, error) {
	where := ""
	args := []any{}
	if collection != "" {
		where = "WHERE d.collection = ?"
		args = append(args, collection)
	}
	orderBy := "count DESC"
	if order == OrderURIAscending {
		orderBy = "t.tag ASC"
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT t.tag, COUNT(DISTINCT t.document_id) AS count
		FROM doc_tags t
		JOIN documents d ON d.id = t.document_id
		%s
		GROUP BY t.tag
		ORDER BY %s
	`, where, orderBy), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		tags = append(tags, tc)
	}
	return tags, rows.Err()
}

func (s *SQLiteStore) OrphanDocuments(ctx context.Context, collection string, liveRelPaths map[string]struct{}) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, docSelectSQL+" WHERE collection = ?", collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orphans []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		if _, live := liveRelPaths[d.RelPath]; !live {
			orphans = append(orphans, d)
		}
	}
	return orphans, rows.Err()
}

// --- Tokenizer / schema state ---

func (s *SQLiteStore) TokenizerInUse(ctx context.Context) (string, error) {
	return s.GetState(ctx, StateKeyFTSTokenizer)
}

func (s *SQLiteStore) RebuildFTS(ctx context.Context, tokenizer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, ftsRebuildSQL(tokenizer)); err != nil {
		return amerrors.Wrap(amerrors.ErrCodeCorruptIndex, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, d.rel_path, d.title, c.body FROM chunks c JOIN documents d ON d.id = c.document_id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type row struct {
		id            int64
		relPath       string
		title         sql.NullString
		body          string
	}
	var all []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.relPath, &r.title, &r.body); err != nil {
			return err
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO documents_fts (rowid, filepath, title, body) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range all {
			if _, err := stmt.ExecContext(ctx, r.id, r.relPath, r.title.String, r.body); err != nil {
				return err
			}
		}
		return s.setStateTx(ctx, tx, StateKeyFTSTokenizer, tokenizer)
	})
}

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetState(ctx context.Context, key, value string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.setStateTx(ctx, tx, key, value)
	})
}

func (s *SQLiteStore) setStateTx(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO kv_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (s *SQLiteStore) Stats(ctx context.Context) (*IndexStats, error) {
	stats := &IndexStats{}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT collection) FROM documents").Scan(&stats.CollectionCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&stats.DocumentCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&stats.ChunkCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&stats.EmbeddingCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT tag) FROM doc_tags").Scan(&stats.TagCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM doc_links").Scan(&stats.LinkCount); err != nil {
		return nil, err
	}
	if s.path != "" {
		if info, err := os.Stat(s.path); err == nil {
			stats.SizeBytes = info.Size()
		}
	}
	return stats, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

func escapeLike(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_")
	return r.Replace(s)
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
