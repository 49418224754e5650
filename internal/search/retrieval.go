package search

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/gmickel/gno/internal/embed"
	gnoerrors "github.com/gmickel/gno/internal/errors"
	"github.com/gmickel/gno/internal/store"
)

// Retrieval mode tags, carried on Result.Mode and QueryResult.Mode so
// formatters (out of scope here, see cmd/gno) can render "meta.mode"
// without re-deriving it.
const (
	ModeLexical = "bm25"
	ModeVector  = "vector"
	ModeHybrid  = "hybrid"
)

// rrfK is the Reciprocal Rank Fusion smoothing constant, fixed by
// spec.md §4.6 ("Fuse via Reciprocal Rank Fusion with constant k = 60").
const rrfK = 60

// maxExpansions bounds the hybrid path's optional query-rewrite fan-out
// (spec.md §4.6: "rewrite the query into up to N expansions (N ≤ 4)").
const maxExpansions = 4

// rerankPoolFloor/Multiplier bound the rerank candidate pool: spec.md
// §4.6 "take the top max(limit*4, 40) fused candidates and rerank".
const rerankPoolFloor = 40
const rerankPoolMultiplier = 4

// RetrievalOptions is the shared input to search/vsearch/query/ask
// (spec.md §4.6).
type RetrievalOptions struct {
	QueryText        string
	Limit            int
	MinScore         float64
	HasMinScore      bool
	CollectionFilter []string
	LanguageHint     string
	Full             bool
	LineNumbers      bool

	// NoExpand disables the hybrid path's generation-model query
	// rewriting (the CLI's --no-expand).
	NoExpand bool
	// NoRerank disables the hybrid path's cross-encoder rerank stage
	// (the CLI's --no-rerank).
	NoRerank bool
}

// Result is one retrieval hit, document-granular (spec.md groups chunk
// hits by owning document and keeps the best chunk as representative).
type Result struct {
	Docid        string
	URI          string
	Title        string
	Collection   string
	Score        float64
	SnippetStart int
	SnippetEnd   int
	Snippet      string
	CodeLang     string
	Mode         string
}

// Citation binds a `[n]` marker parsed out of a grounded answer back to
// the nth context block's source location (spec.md §4.6 step 3).
type Citation struct {
	N         int
	Docid     string
	URI       string
	StartLine int
	EndLine   int
}

// QueryResult is returned by Search, VSearch, and Query.
type QueryResult struct {
	Query   string
	Mode    string
	Results []Result
}

// AskResult is returned by Ask. Answer/Citations are absent and
// AnswerGenerated is false when no generation model is available —
// grounded-answer failures degrade to retrieval-only, never fatal
// (spec.md §4.6, §7).
type AskResult struct {
	Query           string
	Results         []Result
	Answer          string
	Citations       []Citation
	AnswerGenerated bool
}

// Retrieval implements spec.md §4.6's four entry operations against one
// store and one active model preset. A nil port disables the paths that
// need it rather than erroring at construction — VSearch/Query/Ask each
// degrade or reject per-operation as spec.md §4.5/§4.6 describe.
type Retrieval struct {
	Store      store.Store
	Embedding  embed.EmbeddingPort
	Rerank     embed.RerankPort
	Generation embed.GenerationPort
	ModelID    string
}

func validateOptions(opts RetrievalOptions) error {
	if strings.TrimSpace(opts.QueryText) == "" {
		return gnoerrors.New(gnoerrors.ErrCodeQueryEmpty, "query text must not be empty", nil)
	}
	if opts.HasMinScore && (opts.MinScore < 0 || opts.MinScore > 1) {
		return gnoerrors.New(gnoerrors.ErrCodeInvalidInput,
			fmt.Sprintf("min-score %.3f out of range [0,1]", opts.MinScore), nil)
	}
	limit := opts.Limit
	if limit <= 0 {
		return gnoerrors.New(gnoerrors.ErrCodeInvalidInput, "limit must be positive", nil)
	}
	return nil
}

func (r *Retrieval) searchFilter(opts RetrievalOptions) store.SearchFilter {
	return store.SearchFilter{
		Collections:  opts.CollectionFilter,
		LanguageHint: opts.LanguageHint,
	}
}

// docResult groups every chunk hit for one document down to its
// best-scoring representative chunk, per spec.md §4.6 "group by docId,
// keep the best chunk's score and range as the representative". Ties
// break on the lowest chunk sequence number (spec.md §9 Open Questions:
// "lowest chunk sequence number recommended").
type docResult struct {
	docID     int64
	chunkID   int64
	chunkSeq  int
	score     float64
	startLine int
	endLine   int
	rank      int // 1-indexed position the score came from, for RRF
}

// bestByDocument reduces chunk-level hits to one representative per
// document, keeping the highest-scoring chunk (lower chunkSeq breaks
// ties) and recording the hit's 1-indexed rank in the source list.
func bestByDocument(hits []docResult) map[int64]docResult {
	best := make(map[int64]docResult, len(hits))
	for _, h := range hits {
		cur, ok := best[h.docID]
		if !ok || h.score > cur.score || (h.score == cur.score && h.chunkSeq < cur.chunkSeq) {
			best[h.docID] = h
		}
	}
	return best
}

// Search runs the BM25-only path (spec.md §4.6 "search").
func (r *Retrieval) Search(ctx context.Context, opts RetrievalOptions) (*QueryResult, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	hits, err := r.Store.LexicalSearch(ctx, opts.QueryText, r.searchFilter(opts), opts.Limit*4)
	if err != nil {
		return nil, gnoerrors.New(gnoerrors.ErrCodeSearchFailed, "lexical search failed", err)
	}

	docHits := make([]docResult, len(hits))
	for i, h := range hits {
		docHits[i] = docResult{
			docID:     h.DocumentID,
			chunkID:   h.ChunkID,
			score:     bm25ToSimilarity(h.BM25Score),
			startLine: h.StartLine,
			endLine:   h.EndLine,
			rank:      i + 1,
		}
	}
	chunkSeqs, err := r.chunkSeqs(ctx, docHits)
	if err != nil {
		return nil, err
	}
	for i := range docHits {
		docHits[i].chunkSeq = chunkSeqs[docHits[i].chunkID]
	}

	best := bestByDocument(docHits)
	normalizeScoresInPlace(best)

	results, err := r.buildResults(ctx, best, opts, ModeLexical)
	if err != nil {
		return nil, err
	}
	return &QueryResult{Query: opts.QueryText, Mode: ModeLexical, Results: results}, nil
}

// bm25ToSimilarity maps SQLite's bm25() convention (more negative is
// more relevant, unbounded magnitude) onto a positive score so the
// later per-query-max normalization (spec.md §9 Open Questions: "BM25
// score normalization strategy... per-query max" — pinned here) yields
// [0,1] with 1.0 for the best match.
func bm25ToSimilarity(raw float64) float64 {
	return -raw
}

// VSearch runs the vector-only path (spec.md §4.6 "vsearch").
func (r *Retrieval) VSearch(ctx context.Context, opts RetrievalOptions) (*QueryResult, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	if r.Embedding == nil || !r.Embedding.Available(ctx) {
		return nil, gnoerrors.New(gnoerrors.ErrCodeModelUnavailable,
			"no active embedding model has vectors for the queried subset", nil)
	}

	qvec, err := r.Embedding.Embed(ctx, opts.QueryText)
	if err != nil {
		return nil, gnoerrors.New(gnoerrors.ErrCodeEmbeddingFailed, "query embedding failed", err)
	}

	hits, err := r.Store.VectorSearch(ctx, r.ModelID, qvec, r.searchFilter(opts), opts.Limit*4)
	if err != nil {
		return nil, gnoerrors.New(gnoerrors.ErrCodeSearchFailed, "vector search failed", err)
	}
	if len(hits) == 0 {
		return &QueryResult{Query: opts.QueryText, Mode: ModeVector, Results: nil}, nil
	}

	docHits := make([]docResult, len(hits))
	for i, h := range hits {
		docHits[i] = docResult{
			docID:   h.DocumentID,
			chunkID: h.ChunkID,
			score:   clamp01(h.Similarity),
			rank:    i + 1,
		}
	}
	if err := r.fillChunkRanges(ctx, docHits); err != nil {
		return nil, err
	}

	best := bestByDocument(docHits)
	results, err := r.buildResults(ctx, best, opts, ModeVector)
	if err != nil {
		return nil, err
	}
	return &QueryResult{Query: opts.QueryText, Mode: ModeVector, Results: results}, nil
}

// Query runs the hybrid path: BM25 and vector search in parallel, RRF
// fusion, optional query expansion, optional rerank (spec.md §4.6
// "query").
func (r *Retrieval) Query(ctx context.Context, opts RetrievalOptions) (*QueryResult, error) {
	fused, mode, err := r.hybridFuse(ctx, opts)
	if err != nil {
		return nil, err
	}

	ranked := rankedDocuments(fused)
	if !opts.NoRerank && r.Rerank != nil {
		poolSize := opts.Limit * rerankPoolMultiplier
		if poolSize < rerankPoolFloor {
			poolSize = rerankPoolFloor
		}
		ranked, err = r.rerank(ctx, opts, ranked, poolSize)
		if err != nil {
			// Rerank failures are not fatal for `query`; fall back to
			// the fused ranking (spec.md §4.6 describes rerank as an
			// enrichment over the fused candidate pool, not a
			// requirement, and §7 only asks grounded-answer failures
			// to degrade silently — but a reranker outage should not
			// turn a working hybrid search into a hard error either).
			ranked = rankedDocuments(fused)
		}
	}

	best := make(map[int64]docResult, len(ranked))
	for _, d := range ranked {
		best[d.docID] = d
	}
	// buildResults sorts its output by score descending before
	// returning, so the fused/reranked order survives the map pass.
	results, err := r.buildResults(ctx, best, opts, mode)
	if err != nil {
		return nil, err
	}
	return &QueryResult{Query: opts.QueryText, Mode: mode, Results: results}, nil
}

// Ask runs the hybrid path then assembles a grounded answer with
// citations (spec.md §4.6 "ask").
func (r *Retrieval) Ask(ctx context.Context, opts RetrievalOptions) (*AskResult, error) {
	qr, err := r.Query(ctx, opts)
	if err != nil {
		return nil, err
	}

	if r.Generation == nil || !r.Generation.Available(ctx) {
		return &AskResult{Query: opts.QueryText, Results: qr.Results, AnswerGenerated: false}, nil
	}

	answer, citations, err := r.groundedAnswer(ctx, opts.QueryText, qr.Results)
	if err != nil {
		// Grounded-answer failures degrade to retrieval-only, never
		// fatal (spec.md §4.6 step 4, §7).
		return &AskResult{Query: opts.QueryText, Results: qr.Results, AnswerGenerated: false}, nil
	}

	return &AskResult{
		Query:           opts.QueryText,
		Results:         qr.Results,
		Answer:          answer,
		Citations:       citations,
		AnswerGenerated: true,
	}, nil
}

// hybridFuse runs BM25 and vector search concurrently (spec.md §5
// "Retrieval BM25 and vector paths can execute in parallel"), optionally
// unioning in up to maxExpansions query rewrites, and fuses everything
// with RRF.
func (r *Retrieval) hybridFuse(ctx context.Context, opts RetrievalOptions) ([]docResult, string, error) {
	if err := validateOptions(opts); err != nil {
		return nil, "", err
	}

	queries := []string{opts.QueryText}
	if !opts.NoExpand && r.Generation != nil && r.Generation.Available(ctx) {
		expansions, err := r.expandQuery(ctx, opts.QueryText)
		if err == nil {
			queries = append(queries, expansions...)
		}
		// Expansion failures are non-fatal; fall back to the single
		// query (spec.md §4.6).
	}

	type laneResult struct {
		lexical []store.LexicalHit
		vector  []store.VectorHit
	}
	lanes := make([]laneResult, len(queries))
	var wg sync.WaitGroup
	var firstErr error
	var mu sync.Mutex

	haveVector := r.Embedding != nil && r.Embedding.Available(ctx)
	var qvecs [][]float32
	if haveVector {
		qvecs = make([][]float32, len(queries))
		for i, q := range queries {
			v, err := r.Embedding.Embed(ctx, q)
			if err != nil {
				haveVector = false
				break
			}
			qvecs[i] = v
		}
	}

	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			lex, err := r.Store.LexicalSearch(ctx, q, r.searchFilter(opts), opts.Limit*4)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			lanes[i].lexical = lex

			if haveVector {
				vec, err := r.Store.VectorSearch(ctx, r.ModelID, qvecs[i], r.searchFilter(opts), opts.Limit*4)
				if err == nil {
					lanes[i].vector = vec
				}
			}
		}(i, q)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, "", gnoerrors.New(gnoerrors.ErrCodeSearchFailed, "hybrid search failed", firstErr)
	}

	// RRF: rrf(d) = Σ_path 1/(k+rank_path(d)). Each expansion lane's
	// lexical/vector lists each contribute their own rank-based term,
	// at a reduced weight so the original query still dominates
	// (spec.md §4.6: "union-fuse with lower weights").
	scores := make(map[int64]float64)
	ranges := make(map[int64]docResult)
	chunkOf := make(map[int64]int64) // docID -> representative chunkID

	addLane := func(docIDs []int64, weight float64) {
		for rank, docID := range docIDs {
			scores[docID] += weight / float64(rrfK+rank+1)
		}
	}

	for i, lane := range lanes {
		weight := 1.0
		if i > 0 {
			weight = 0.5
		}
		lexDocIDs := make([]int64, len(lane.lexical))
		for j, h := range lane.lexical {
			lexDocIDs[j] = h.DocumentID
			if _, ok := ranges[h.DocumentID]; !ok {
				ranges[h.DocumentID] = docResult{docID: h.DocumentID, startLine: h.StartLine, endLine: h.EndLine}
				chunkOf[h.DocumentID] = h.ChunkID
			}
		}
		addLane(lexDocIDs, weight)

		vecDocIDs := make([]int64, len(lane.vector))
		for j, h := range lane.vector {
			vecDocIDs[j] = h.DocumentID
			if _, ok := chunkOf[h.DocumentID]; !ok {
				chunkOf[h.DocumentID] = h.ChunkID
			}
		}
		addLane(vecDocIDs, weight)
	}

	fused := make([]docResult, 0, len(scores))
	for docID, score := range scores {
		dr := ranges[docID]
		dr.docID = docID
		dr.score = score
		dr.chunkID = chunkOf[docID]
		fused = append(fused, dr)
	}
	if err := r.fillMissingRanges(ctx, fused); err != nil {
		return nil, "", err
	}
	if err := r.fillChunkSeqs(ctx, fused); err != nil {
		return nil, "", err
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].docID < fused[j].docID
	})
	for i := range fused {
		fused[i].rank = i + 1
	}
	normalizeRankedScores(fused)

	return fused, ModeHybrid, nil
}

// rankedDocuments returns a copy of fused sorted by score descending.
func rankedDocuments(fused []docResult) []docResult {
	out := make([]docResult, len(fused))
	copy(out, fused)
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

// rerank takes the top poolSize fused candidates, scores their
// representative chunk body against the query with the active
// RerankPort, and replaces the fused score for the surviving top
// results (spec.md §4.6: "the rerank score replaces the fused score
// for the surviving top limit").
func (r *Retrieval) rerank(ctx context.Context, opts RetrievalOptions, ranked []docResult, poolSize int) ([]docResult, error) {
	if poolSize > len(ranked) {
		poolSize = len(ranked)
	}
	pool := ranked[:poolSize]

	texts := make([]string, len(pool))
	for i, d := range pool {
		chunk, err := r.Store.GetChunkByID(ctx, d.chunkID)
		if err != nil {
			texts[i] = ""
			continue
		}
		texts[i] = chunk.Body
	}

	scored, err := r.Rerank.Rerank(ctx, opts.QueryText, texts, 0)
	if err != nil {
		return nil, gnoerrors.New(gnoerrors.ErrCodeRerankFailed, "rerank failed", err)
	}

	out := make([]docResult, len(pool))
	copy(out, pool)
	for _, s := range scored {
		if s.Index >= 0 && s.Index < len(out) {
			out[s.Index].score = s.Score
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out, nil
}

// expandQuery asks the active generation model to rewrite query into up
// to maxExpansions alternative phrasings (spec.md §4.6: "rewrite the
// query into up to N expansions (N ≤ 4)"). One line per expansion is
// expected back; malformed output degrades to zero expansions rather
// than erroring, since the caller already treats expansion as optional.
func (r *Retrieval) expandQuery(ctx context.Context, query string) ([]string, error) {
	prompt := fmt.Sprintf(
		"Rewrite the following search query into up to %d alternative phrasings "+
			"that would retrieve the same information using different words. "+
			"Reply with one rewrite per line, no numbering, no commentary.\n\nQuery: %s",
		maxExpansions, query)

	out, err := r.Generation.Generate(ctx, prompt, embed.GenerationOptions{MaxTokens: 200})
	if err != nil {
		return nil, err
	}

	var expansions []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.EqualFold(line, query) {
			continue
		}
		expansions = append(expansions, line)
		if len(expansions) >= maxExpansions {
			break
		}
	}
	return expansions, nil
}

// groundedAnswer implements spec.md §4.6's grounded-answer assembly:
// numbered context blocks, a cite-by-number prompt, and citation
// binding back to {docid,uri,startLine,endLine} tuples.
func (r *Retrieval) groundedAnswer(ctx context.Context, query string, results []Result) (string, []Citation, error) {
	if len(results) == 0 {
		return "", nil, gnoerrors.New(gnoerrors.ErrCodeNotFound, "no retrieval results to ground an answer in", nil)
	}

	const blockCharBudget = 1500
	var sb strings.Builder
	sb.WriteString("Answer the question using only the numbered context blocks below. ")
	sb.WriteString("Cite every factual claim with its block number in square brackets, e.g. [1].\n\n")
	fmt.Fprintf(&sb, "Question: %s\n\n", query)
	for i, res := range results {
		snippet := res.Snippet
		if len(snippet) > blockCharBudget {
			snippet = snippet[:blockCharBudget]
		}
		fmt.Fprintf(&sb, "[%d] (%s)\n%s\n\n", i+1, res.URI, snippet)
	}

	answer, err := r.Generation.Generate(ctx, sb.String(), embed.GenerationOptions{MaxTokens: 800})
	if err != nil {
		return "", nil, err
	}

	return answer, bindCitations(answer, results), nil
}

var citationMarkerPattern = regexp.MustCompile(`\[(\d+)\]`)

// bindCitations extracts `[n]` markers from a generated answer and
// binds each distinct n to its source context block (1-indexed, per
// spec.md §4.6 step 3).
func bindCitations(answer string, results []Result) []Citation {
	matches := citationMarkerPattern.FindAllStringSubmatch(answer, -1)
	seen := make(map[int]bool)
	var citations []Citation
	for _, m := range matches {
		var n int
		if _, err := fmt.Sscanf(m[1], "%d", &n); err != nil {
			continue
		}
		if n < 1 || n > len(results) || seen[n] {
			continue
		}
		seen[n] = true
		res := results[n-1]
		citations = append(citations, Citation{
			N:         n,
			Docid:     res.Docid,
			URI:       res.URI,
			StartLine: res.SnippetStart,
			EndLine:   res.SnippetEnd,
		})
	}
	sort.Slice(citations, func(i, j int) bool { return citations[i].N < citations[j].N })
	return citations
}

// buildResults resolves document metadata for each winning docResult,
// enforces limit/minScore, and applies the full-document-vs-snippet
// choice (spec.md §4.6 "Snippet extraction").
func (r *Retrieval) buildResults(ctx context.Context, best map[int64]docResult, opts RetrievalOptions, mode string) ([]Result, error) {
	ordered := make([]docResult, 0, len(best))
	for _, d := range best {
		ordered = append(ordered, d)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].score != ordered[j].score {
			return ordered[i].score > ordered[j].score
		}
		return ordered[i].docID < ordered[j].docID
	})

	results := make([]Result, 0, opts.Limit)
	for _, d := range ordered {
		if opts.HasMinScore && d.score < opts.MinScore {
			continue
		}
		doc, err := r.Store.GetDocumentByID(ctx, d.docID)
		if err != nil {
			continue // orphaned reference; skip rather than fail the whole query
		}

		res := Result{
			Docid:      "#" + doc.Docid,
			URI:        doc.URI,
			Title:      doc.Title,
			Collection: doc.Collection,
			Score:      d.score,
			Mode:       mode,
		}

		if opts.Full {
			// Full-document retrieval joins every chunk body of the
			// document in order, the same text `get` prints.
			res.SnippetStart, res.SnippetEnd = 1, 0
			if chunks, err := r.Store.GetChunks(ctx, d.docID); err == nil && len(chunks) > 0 {
				bodies := make([]string, len(chunks))
				for i, c := range chunks {
					bodies[i] = c.Body
				}
				res.Snippet = strings.Join(bodies, "\n\n")
				res.SnippetEnd = chunks[len(chunks)-1].EndLine
			}
		} else if d.chunkID != 0 {
			chunk, err := r.Store.GetChunkByID(ctx, d.chunkID)
			if err == nil {
				res.Snippet = chunk.Body
				res.SnippetStart = chunk.StartLine
				res.SnippetEnd = chunk.EndLine
				res.CodeLang = chunk.CodeLang
			}
		} else {
			res.SnippetStart, res.SnippetEnd = d.startLine, d.endLine
		}

		results = append(results, res)
		if len(results) >= opts.Limit {
			break
		}
	}
	return results, nil
}

// clamp01 clamps a similarity/score value into [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normalizeScoresInPlace scales a map of docResults so the maximum
// score becomes 1.0 (spec.md §4.6's per-query-max BM25 normalization
// choice, spec.md §9 Open Questions).
func normalizeScoresInPlace(m map[int64]docResult) {
	var max float64
	for _, d := range m {
		if d.score > max {
			max = d.score
		}
	}
	if max == 0 {
		return
	}
	for k, d := range m {
		d.score = d.score / max
		m[k] = d
	}
}

// normalizeRankedScores scales a slice of docResults (already sorted
// descending) so the top score becomes 1.0.
func normalizeRankedScores(ranked []docResult) {
	if len(ranked) == 0 || ranked[0].score == 0 {
		return
	}
	max := ranked[0].score
	for i := range ranked {
		ranked[i].score = ranked[i].score / max
	}
}

// chunkSeqs resolves each hit's chunk sequence number, for the
// stable tie-break defined by bestByDocument.
func (r *Retrieval) chunkSeqs(ctx context.Context, hits []docResult) (map[int64]int, error) {
	out := make(map[int64]int, len(hits))
	for _, h := range hits {
		if _, ok := out[h.chunkID]; ok {
			continue
		}
		c, err := r.Store.GetChunkByID(ctx, h.chunkID)
		if err != nil {
			out[h.chunkID] = 0
			continue
		}
		out[h.chunkID] = c.Seq
	}
	return out, nil
}

// fillChunkRanges populates startLine/endLine for docResults that only
// carry a chunkID (the vector path's VectorHit has no line range).
func (r *Retrieval) fillChunkRanges(ctx context.Context, hits []docResult) error {
	cache := make(map[int64]*store.Chunk)
	for i, h := range hits {
		c, ok := cache[h.chunkID]
		if !ok {
			fetched, err := r.Store.GetChunkByID(ctx, h.chunkID)
			if err != nil {
				continue
			}
			c = fetched
			cache[h.chunkID] = c
		}
		hits[i].startLine = c.StartLine
		hits[i].endLine = c.EndLine
		hits[i].chunkSeq = c.Seq
	}
	return nil
}

// fillMissingRanges fills startLine/endLine/chunkSeq for fused
// docResults whose range came from a vector-only hit (no lexical hit
// populated ranges for that document).
func (r *Retrieval) fillMissingRanges(ctx context.Context, fused []docResult) error {
	for i, d := range fused {
		if d.startLine != 0 || d.endLine != 0 {
			continue
		}
		if d.chunkID == 0 {
			continue
		}
		c, err := r.Store.GetChunkByID(ctx, d.chunkID)
		if err != nil {
			continue
		}
		fused[i].startLine = c.StartLine
		fused[i].endLine = c.EndLine
	}
	return nil
}

func (r *Retrieval) fillChunkSeqs(ctx context.Context, fused []docResult) error {
	for i, d := range fused {
		if d.chunkID == 0 {
			continue
		}
		c, err := r.Store.GetChunkByID(ctx, d.chunkID)
		if err != nil {
			continue
		}
		fused[i].chunkSeq = c.Seq
	}
	return nil
}
