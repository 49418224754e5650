// Package index provides the ingestion pipeline: synchronizing the store
// with the file system for every configured collection (spec.md §4.3).
package index

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gmickel/gno/internal/chunk"
	"github.com/gmickel/gno/internal/config"
	"github.com/gmickel/gno/internal/convert"
	"github.com/gmickel/gno/internal/embed"
	gnoerrors "github.com/gmickel/gno/internal/errors"
	"github.com/gmickel/gno/internal/scanner"
	"github.com/gmickel/gno/internal/store"
	"github.com/gmickel/gno/internal/ui"
)

// CurrentIngestVersion is stamped on every upserted document. Bumping it
// forces full reconversion of otherwise-unchanged files on the next sync,
// the way a chunker or converter format change would require.
const CurrentIngestVersion = 1

// maxConvertAttempts bounds the retries spec.md §4.3 step 5 asks for on
// a retryable converter failure (TIMEOUT, ADAPTER_FAILURE).
const maxConvertAttempts = 3

// convertWorkerCount bounds the per-collection file worker pool (spec.md
// §5: "Converter invocations execute in a bounded task pool ... size ≤
// available hardware threads / 2, minimum 2"). Store writes themselves
// stay serialized behind store.SQLiteStore's own writer mutex, so the
// pool parallelizes conversion/chunking CPU work, not the database.
func convertWorkerCount() int {
	n := runtime.NumCPU() / 2
	if n < 2 {
		n = 2
	}
	return n
}

// RunnerConfig configures one invocation of Run.
type RunnerConfig struct {
	// Collections is the set of collections to synchronize.
	Collections []config.CollectionConfig

	// GitPull runs each collection's configured UpdateCmd before
	// scanning, per spec.md §4.3 step 1.
	GitPull bool

	// EmbedEnabled enqueues changed chunks for embedding (step 10).
	// Ignored when Embedder is nil.
	EmbedEnabled bool
}

// SyncStats counts files by how syncCollection classified them.
type SyncStats struct {
	FilesAdded     int
	FilesUpdated   int
	FilesUnchanged int
	FilesSkipped   int
	FilesErrored   int
}

// FileError is a single per-file failure recorded during a sync, never
// fatal to the collection as a whole.
type FileError struct {
	RelPath string
	Err     error
}

// CollectionResult is one collection's outcome within a SyncResult.
type CollectionResult struct {
	Collection string
	Stats      SyncStats
	Errors     []FileError
	Warnings   []string
	Orphaned   int
	Duration   time.Duration
}

// SyncResult aggregates every collection synchronized by one Run call.
type SyncResult struct {
	Collections []CollectionResult
	Duration    time.Duration
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	// Store is the durable backing store (required).
	Store store.Store

	// Converters dispatches ingested bytes to canonical markdown
	// (required).
	Converters *convert.Registry

	// Chunker splits canonical markdown into chunks (required).
	Chunker chunk.Chunker

	// Embedder generates chunk embeddings. Nil disables step 10.
	Embedder embed.EmbeddingPort

	// Renderer displays sync progress (required).
	Renderer ui.Renderer
}

// Runner executes the ingestion pipeline across configured collections.
type Runner struct {
	store      store.Store
	converters *convert.Registry
	chunker    chunk.Chunker
	embedder   embed.EmbeddingPort
	renderer   ui.Renderer
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Converters == nil {
		return nil, fmt.Errorf("converter registry is required")
	}
	if deps.Chunker == nil {
		return nil, fmt.Errorf("chunker is required")
	}
	if deps.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}

	return &Runner{
		store:      deps.Store,
		converters: deps.Converters,
		chunker:    deps.Chunker,
		embedder:   deps.Embedder,
		renderer:   deps.Renderer,
	}, nil
}

// Run synchronizes every configured collection in turn (spec.md §4.3's
// "per collection" algorithm). Collections are processed one after
// another; only the files within a collection are worked on in parallel.
func (r *Runner) Run(ctx context.Context, cfg RunnerConfig) (*SyncResult, error) {
	start := time.Now()
	result := &SyncResult{}

	for _, coll := range cfg.Collections {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		collResult, err := r.syncCollection(ctx, coll, cfg)
		if err != nil {
			return result, fmt.Errorf("sync collection %q: %w", coll.Name, err)
		}
		result.Collections = append(result.Collections, *collResult)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// syncCollection runs spec.md §4.3 steps 1-10 for a single collection.
func (r *Runner) syncCollection(ctx context.Context, coll config.CollectionConfig, cfg RunnerConfig) (*CollectionResult, error) {
	collStart := time.Now()
	res := &CollectionResult{Collection: coll.Name}

	if cfg.GitPull && coll.UpdateCmd != "" {
		if warning := r.runUpdateCmd(ctx, coll); warning != "" {
			res.Warnings = append(res.Warnings, warning)
		}
	}

	files, err := r.scanCollection(ctx, coll)
	if err != nil {
		return nil, err
	}

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageScanning,
		Message: fmt.Sprintf("collection %s: %d candidate files", coll.Name, len(files)),
		Total:   len(files),
	})

	liveRelPaths := make(map[string]struct{}, len(files))
	var changedDocumentIDs []int64
	var changedChunks []*store.Chunk
	var progressDone int
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(convertWorkerCount())

	for _, file := range files {
		file := file
		mu.Lock()
		liveRelPaths[file.Path] = struct{}{}
		mu.Unlock()

		group.Go(func() error {
			status, documentID, docChunks, syncErr := r.syncFile(groupCtx, coll, file)

			mu.Lock()
			defer mu.Unlock()

			progressDone++
			r.renderer.UpdateProgress(ui.ProgressEvent{
				Stage:       ui.StageChunking,
				Current:     progressDone,
				Total:       len(files),
				CurrentFile: file.Path,
			})

			switch status {
			case fileStatusAdded:
				res.Stats.FilesAdded++
			case fileStatusUpdated:
				res.Stats.FilesUpdated++
			case fileStatusUnchanged:
				res.Stats.FilesUnchanged++
			case fileStatusSkipped:
				res.Stats.FilesSkipped++
			case fileStatusErrored:
				res.Stats.FilesErrored++
				res.Errors = append(res.Errors, FileError{RelPath: file.Path, Err: syncErr})
				r.renderer.AddError(ui.ErrorEvent{File: file.Path, Err: syncErr, IsWarn: true})
				return nil
			}

			if documentID != 0 && len(docChunks) > 0 {
				changedDocumentIDs = append(changedDocumentIDs, documentID)
				changedChunks = append(changedChunks, docChunks...)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	orphans, err := r.store.OrphanDocuments(ctx, coll.Name, liveRelPaths)
	if err != nil {
		return nil, fmt.Errorf("find orphans: %w", err)
	}
	for _, doc := range orphans {
		if err := r.store.DeleteDocument(ctx, doc.ID); err != nil {
			slog.Warn("failed to delete orphaned document",
				slog.String("collection", coll.Name), slog.String("relPath", doc.RelPath),
				slog.String("error", err.Error()))
			continue
		}
		res.Orphaned++
	}

	if cfg.EmbedEnabled && r.embedder != nil && len(changedChunks) > 0 {
		if err := r.embedChunks(ctx, changedChunks); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("embedding failed: %v", err))
		}
	}

	res.Duration = time.Since(collStart)
	return res, nil
}

type fileStatus int

const (
	fileStatusAdded fileStatus = iota
	fileStatusUpdated
	fileStatusUnchanged
	fileStatusSkipped
	fileStatusErrored
)

// syncFile runs spec.md §4.3 steps 3-8 for one candidate file.
func (r *Runner) syncFile(ctx context.Context, coll config.CollectionConfig, file *scanner.FileInfo) (fileStatus, int64, []*store.Chunk, error) {
	existing, err := r.store.GetDocument(ctx, store.DocRef{Collection: coll.Name, RelPath: file.Path})
	if err != nil && gnoerrors.GetCategory(err) != gnoerrors.CategoryNotFound {
		return fileStatusErrored, 0, nil, err
	}
	if existing == nil && err == nil {
		existing = nil
	}
	if err != nil {
		existing = nil
	}

	if existing != nil &&
		existing.SourceMtime.Equal(file.ModTime) &&
		existing.SourceSize == file.Size &&
		existing.IngestVersion == CurrentIngestVersion {
		return fileStatusUnchanged, 0, nil, nil
	}

	content, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return fileStatusErrored, 0, nil, fmt.Errorf("read: %w", err)
	}
	sourceHash := contentHash(content)

	if existing != nil &&
		existing.SourceHash == sourceHash &&
		existing.IngestVersion == CurrentIngestVersion {
		existing.SourceMtime = file.ModTime
		existing.SourceSize = file.Size
		if _, err := r.store.UpsertDocument(ctx, existing); err != nil {
			return fileStatusErrored, 0, nil, fmt.Errorf("refresh metadata: %w", err)
		}
		return fileStatusUnchanged, 0, nil, nil
	}

	in := convert.Input{
		RelPath: file.Path,
		Mime:    detectMime(file.Path),
		Ext:     extOf(file.Path),
		Content: content,
	}

	artifact, err := r.convertWithRetry(ctx, in)
	if err != nil {
		return fileStatusErrored, 0, nil, fmt.Errorf("convert: %w", err)
	}

	fm, body := parseFrontmatter(artifact.Markdown)
	languageHint := fm.LanguageHint
	if languageHint == "" {
		languageHint = artifact.LanguageHint
	}
	if languageHint == "" {
		languageHint = coll.LanguageHint
	}

	title := fm.Title
	if title == "" {
		title = artifact.Title
	}
	if title == "" {
		title = filepath.Base(file.Path)
	}

	fileChunks, err := r.chunker.Chunk(ctx, &chunk.FileInput{
		Path:     file.Path,
		Content:  []byte(body),
		Language: languageHint,
	})
	if err != nil {
		return fileStatusErrored, 0, nil, fmt.Errorf("chunk: %w", err)
	}

	doc := &store.Document{
		Collection:    coll.Name,
		RelPath:       file.Path,
		URI:           fmt.Sprintf("gno://%s/%s", coll.Name, file.Path),
		Title:         title,
		Mime:          in.Mime,
		Ext:           in.Ext,
		SourceMtime:   file.ModTime,
		SourceSize:    file.Size,
		SourceHash:    sourceHash,
		MirrorHash:    artifact.MirrorHash,
		LanguageHint:  languageHint,
		IngestVersion: CurrentIngestVersion,
	}
	if existing != nil {
		doc.ID = existing.ID
	}

	docid, err := r.store.UpsertDocument(ctx, doc)
	if err != nil {
		return fileStatusErrored, 0, nil, fmt.Errorf("upsert document: %w", err)
	}
	if doc.ID == 0 {
		resolved, err := r.store.GetDocument(ctx, store.DocRef{Docid: docid})
		if err != nil {
			return fileStatusErrored, 0, nil, fmt.Errorf("resolve new document: %w", err)
		}
		doc.ID = resolved.ID
	}

	storeChunks := make([]*store.Chunk, len(fileChunks))
	for i, c := range fileChunks {
		storeChunks[i] = &store.Chunk{
			DocumentID: doc.ID,
			Seq:        i,
			StartLine:  c.StartLine,
			EndLine:    c.EndLine,
			Body:       c.Content,
			CodeLang:   c.CodeLang,
		}
	}
	if err := r.store.ReplaceChunks(ctx, doc.ID, storeChunks); err != nil {
		return fileStatusErrored, 0, nil, fmt.Errorf("replace chunks: %w", err)
	}

	if err := r.store.ReplaceTags(ctx, doc.ID, store.TagSourceFrontmatter, fm.Tags); err != nil {
		slog.Warn("failed to replace frontmatter tags", slog.String("relPath", file.Path), slog.String("error", err.Error()))
	}

	links := extractLinks(body)
	for _, link := range links {
		link.DocumentID = doc.ID
	}
	if err := r.store.ReplaceLinks(ctx, doc.ID, store.LinkSourceParsed, links); err != nil {
		slog.Warn("failed to replace parsed links", slog.String("relPath", file.Path), slog.String("error", err.Error()))
	}

	status := fileStatusAdded
	if existing != nil {
		status = fileStatusUpdated
	}
	return status, doc.ID, storeChunks, nil
}

// convertWithRetry dispatches a conversion, retrying retryable failures
// (spec.md §4.3 step 5) up to maxConvertAttempts with a short backoff.
func (r *Runner) convertWithRetry(ctx context.Context, in convert.Input) (*convert.ConversionArtifact, error) {
	var lastErr error
	for attempt := 1; attempt <= maxConvertAttempts; attempt++ {
		artifact, err := r.converters.Convert(ctx, in)
		if err == nil {
			return artifact, nil
		}
		lastErr = err

		var convErr *convert.ConvertError
		if ce, ok := err.(*convert.ConvertError); ok {
			convErr = ce
		}
		if convErr == nil || !convErr.Retryable || attempt == maxConvertAttempts {
			return nil, err
		}

		slog.Debug("retrying conversion", slog.String("relPath", in.RelPath), slog.Int("attempt", attempt))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return nil, lastErr
}

// embedChunks generates and stores vectors for newly added/updated
// chunks (spec.md §4.3 step 10).
func (r *Runner) embedChunks(ctx context.Context, chunks []*store.Chunk) error {
	const batchSize = 32
	modelName := r.embedder.ModelName()

	r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageEmbedding, Total: len(chunks)})

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Body
		}

		vectors, err := r.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}

		for i, c := range batch {
			if err := r.store.SetEmbedding(ctx, c.ID, modelName, vectors[i]); err != nil {
				return fmt.Errorf("store embedding for chunk %d: %w", c.ID, err)
			}
		}

		r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageEmbedding, Current: end, Total: len(chunks)})
	}

	return nil
}

// scanCollection walks a collection root honoring its include/exclude
// configuration (spec.md §4.3 step 2). Symlinks are never followed and
// .gitignore is always respected.
func (r *Runner) scanCollection(ctx context.Context, coll config.CollectionConfig) ([]*scanner.FileInfo, error) {
	s, err := scanner.New()
	if err != nil {
		return nil, fmt.Errorf("create scanner: %w", err)
	}

	include := coll.IncludeExt
	if coll.Pattern != "" {
		include = append(include, coll.Pattern)
	}

	results, err := s.Scan(ctx, &scanner.ScanOptions{
		RootDir:          coll.Path,
		IncludePatterns:  include,
		ExcludePatterns:  coll.ExcludePatterns,
		RespectGitignore: true,
		Workers:          runtime.NumCPU(),
		FollowSymlinks:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("start scan: %w", err)
	}

	var files []*scanner.FileInfo
	for result := range results {
		if result.Error != nil {
			r.renderer.AddError(ui.ErrorEvent{File: result.File.Path, Err: result.Error, IsWarn: true})
			continue
		}
		files = append(files, result.File)
	}
	return files, nil
}

// runUpdateCmd runs a collection's configured pre-sync shell command
// (spec.md §4.3 step 1). Failures are surfaced as a warning, never fatal.
func (r *Runner) runUpdateCmd(ctx context.Context, coll config.CollectionConfig) string {
	cmd := exec.CommandContext(ctx, "sh", "-c", coll.UpdateCmd)
	cmd.Dir = coll.Path

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return fmt.Sprintf("updateCmd for collection %q failed: %v: %s", coll.Name, err, strings.TrimSpace(out.String()))
	}
	return ""
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
