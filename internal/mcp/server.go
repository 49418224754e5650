package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gmickel/gno/internal/search"
	"github.com/gmickel/gno/internal/store"
	"github.com/gmickel/gno/internal/telemetry"
	"github.com/gmickel/gno/pkg/version"
)

// Server is the MCP server for gno. It bridges AI clients (Claude Code,
// Cursor) with the retrieval engine and document store over stdio,
// exposing the same operations as the CLI's search/vsearch/query/ask/
// get/multi-get/ls (spec.md §4.6, SPEC_FULL.md §A.5).
type Server struct {
	mcp       *mcp.Server
	retrieval *search.Retrieval
	store     store.Store
	logger    *slog.Logger

	// Query telemetry (optional, set via SetMetrics)
	metrics *telemetry.QueryMetrics

	mu sync.RWMutex
}

// ResourceContent contains the content of a resource.
type ResourceContent struct {
	URI      string
	Content  string
	MIMEType string
}

// NewServer creates a new MCP server bound to one retrieval engine and
// document store. retrieval.Embedding/Rerank/Generation may be nil —
// VSearch/Query/Ask each degrade per-operation rather than requiring a
// model at construction time.
func NewServer(retrieval *search.Retrieval, st store.Store) (*Server, error) {
	if retrieval == nil {
		return nil, errors.New("retrieval engine is required")
	}
	if st == nil {
		return nil, errors.New("document store is required")
	}

	s := &Server{
		retrieval: retrieval,
		store:     st,
		logger:    slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "gno",
			Version: version.Version,
		},
		nil, // ServerOptions - capabilities are inferred from registered tools/resources
	)

	s.registerTools()
	return s, nil
}

// SetMetrics sets the query metrics collector for telemetry. When set, a
// query_metrics resource is registered, sharing the same
// internal/telemetry data the CLI's `gno stats queries` reads.
func (s *Server) SetMetrics(m *telemetry.QueryMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
	if m != nil {
		s.registerQueryMetricsResource()
	}
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "gno", version.Version
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "BM25 lexical search over the index. Use for exact-term lookups — fast, no embedding model required.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "vsearch",
		Description: "Vector-only semantic search. Finds conceptually related documents even without shared keywords.",
	}, s.handleVSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query",
		Description: "Primary search tool: hybrid BM25 + vector search fused with Reciprocal Rank Fusion, with optional query expansion and cross-encoder rerank. Use this for 95% of search tasks.",
	}, s.handleQuery)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question with a grounded, cited answer synthesized from the top retrieved context. Falls back to plain results if no generation model is available.",
	}, s.handleAsk)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get",
		Description: "Fetch one document's full canonical content by docid, gno:// URI, or collection/path.",
	}, s.handleGet)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "multi_get",
		Description: "Fetch several documents' content in one call.",
	}, s.handleMultiGet)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "ls",
		Description: "List documents in a collection or path prefix.",
	}, s.handleLs)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Check store statistics and whether the active embedding model is available. Use before searching to verify the index is ready.",
	}, s.handleIndexStatus)

	s.logger.Info("MCP tools registered", slog.Int("count", 8))
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult, SearchOutput, error,
) {
	opts, err := toRetrievalOptions(input)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	qr, err := s.retrieval.Search(ctx, opts)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}
	s.recordQuery(telemetry.QueryTypeLexical, input.Query, len(qr.Results))
	return textResult(FormatQueryResult(qr)), toSearchOutput(qr), nil
}

func (s *Server) handleVSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult, SearchOutput, error,
) {
	opts, err := toRetrievalOptions(input)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	qr, err := s.retrieval.VSearch(ctx, opts)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}
	s.recordQuery(telemetry.QueryTypeSemantic, input.Query, len(qr.Results))
	return textResult(FormatQueryResult(qr)), toSearchOutput(qr), nil
}

func (s *Server) handleQuery(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (
	*mcp.CallToolResult, SearchOutput, error,
) {
	opts, err := toRetrievalOptions(input.SearchInput)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	opts.NoExpand = input.NoExpand
	opts.NoRerank = input.NoRerank

	qr, err := s.retrieval.Query(ctx, opts)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}
	s.recordQuery(telemetry.QueryTypeMixed, input.Query, len(qr.Results))
	return textResult(FormatQueryResult(qr)), toSearchOutput(qr), nil
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (
	*mcp.CallToolResult, AskOutput, error,
) {
	opts, err := toRetrievalOptions(input.SearchInput)
	if err != nil {
		return nil, AskOutput{}, err
	}
	opts.NoExpand = input.NoExpand
	opts.NoRerank = input.NoRerank

	ar, err := s.retrieval.Ask(ctx, opts)
	if err != nil {
		return nil, AskOutput{}, MapError(err)
	}
	s.recordQuery(telemetry.QueryTypeMixed, input.Query, len(ar.Results))

	output := AskOutput{
		Query:           ar.Query,
		Results:         toSearchResultItems(ar.Results),
		Answer:          ar.Answer,
		Citations:       toCitationItems(ar.Citations),
		AnswerGenerated: ar.AnswerGenerated,
	}
	return textResult(FormatAskResult(ar)), output, nil
}

func (s *Server) handleGet(ctx context.Context, _ *mcp.CallToolRequest, input GetInput) (
	*mcp.CallToolResult, GetOutput, error,
) {
	if strings.TrimSpace(input.Ref) == "" {
		return nil, GetOutput{}, NewInvalidParamsError("ref is required")
	}
	out, err := s.fetchDocument(ctx, input.Ref)
	if err != nil {
		return nil, GetOutput{}, MapError(err)
	}
	return textResult(out.Content), out, nil
}

func (s *Server) handleMultiGet(ctx context.Context, _ *mcp.CallToolRequest, input MultiGetInput) (
	*mcp.CallToolResult, MultiGetOutput, error,
) {
	if len(input.Refs) == 0 {
		return nil, MultiGetOutput{}, NewInvalidParamsError("refs is required")
	}

	output := MultiGetOutput{Documents: make([]GetOutput, 0, len(input.Refs))}
	for _, ref := range input.Refs {
		doc, err := s.fetchDocument(ctx, ref)
		if err != nil {
			if output.Errors == nil {
				output.Errors = make(map[string]string)
			}
			output.Errors[ref] = err.Error()
			continue
		}
		output.Documents = append(output.Documents, doc)
	}
	return nil, output, nil
}

func (s *Server) handleLs(ctx context.Context, _ *mcp.CallToolRequest, input LsInput) (
	*mcp.CallToolResult, LsOutput, error,
) {
	limit := clampLimit(input.Limit, 100, 1, 1000)
	docs, err := s.store.ListDocuments(ctx, store.ListScope{
		Collection: input.Collection,
		PathPrefix: input.Prefix,
	}, store.OrderURIAscending, limit, input.Offset)
	if err != nil {
		return nil, LsOutput{}, MapError(err)
	}

	output := LsOutput{Documents: make([]LsDocument, len(docs))}
	for i, d := range docs {
		output.Documents[i] = LsDocument{Docid: d.Docid, URI: d.URI, Title: d.Title, Collection: d.Collection}
	}
	return nil, output, nil
}

func (s *Server) handleIndexStatus(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult, IndexStatusOutput, error,
) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, MapError(err)
	}

	output := IndexStatusOutput{
		CollectionCount: stats.CollectionCount,
		DocumentCount:   stats.DocumentCount,
		ChunkCount:      stats.ChunkCount,
		EmbeddingCount:  stats.EmbeddingCount,
		EmbedderModel:   "none",
		EmbedderStatus:  "unavailable",
	}
	if s.retrieval.Embedding != nil {
		output.EmbedderModel = s.retrieval.Embedding.ModelName()
		if s.retrieval.Embedding.Available(ctx) {
			output.EmbedderStatus = "ready"
		} else {
			output.EmbedderStatus = "offline"
		}
	}
	return nil, output, nil
}

// fetchDocument resolves ref and loads its full chunked content, the
// shared body behind get and multi_get (mirrors cmd/gno/cmd/get.go's
// getOne).
func (s *Server) fetchDocument(ctx context.Context, ref string) (GetOutput, error) {
	doc, err := s.store.GetDocument(ctx, parseDocRef(ref))
	if err != nil {
		return GetOutput{}, err
	}
	chunks, err := s.store.GetChunks(ctx, doc.ID)
	if err != nil {
		return GetOutput{}, err
	}

	bodies := make([]string, len(chunks))
	for i, c := range chunks {
		bodies[i] = c.Body
	}
	return GetOutput{
		Docid:      doc.Docid,
		URI:        doc.URI,
		Title:      doc.Title,
		Collection: doc.Collection,
		Content:    strings.Join(bodies, "\n\n"),
		Chunks:     bodies,
	}, nil
}

// toRetrievalOptions builds search.RetrievalOptions from a tool input,
// applying the same defaulting the CLI's retrievalFlags does.
func toRetrievalOptions(input SearchInput) (search.RetrievalOptions, error) {
	if strings.TrimSpace(input.Query) == "" {
		return search.RetrievalOptions{}, NewInvalidParamsError("query is required")
	}
	return search.RetrievalOptions{
		QueryText:        input.Query,
		Limit:            clampLimit(input.Limit, 10, 1, 100),
		MinScore:         input.MinScore,
		HasMinScore:      input.MinScore > 0,
		CollectionFilter: input.Collections,
		LanguageHint:     input.Language,
		Full:             input.Full,
		LineNumbers:      input.LineNumbers,
	}, nil
}

func toSearchOutput(qr *search.QueryResult) SearchOutput {
	return SearchOutput{
		Query:   qr.Query,
		Mode:    qr.Mode,
		Results: toSearchResultItems(qr.Results),
	}
}

// textResult wraps markdown in a CallToolResult so clients that only
// render text content still see a readable answer alongside the
// structured output.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// recordQuery records a completed retrieval call to local query
// telemetry, the same sink cmd/gno/cmd's appContext.recordQuery writes
// to. A nil metrics collector is a silent no-op.
func (s *Server) recordQuery(queryType telemetry.QueryType, query string, resultCount int) {
	s.mu.RLock()
	m := s.metrics
	s.mu.RUnlock()
	if m == nil {
		return
	}
	m.Record(telemetry.QueryEvent{
		Query:       query,
		QueryType:   queryType,
		ResultCount: resultCount,
	})
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (*ResourceContent, error) {
	chunkID, ok := strings.CutPrefix(uri, "chunk://")
	if !ok {
		return nil, NewResourceNotFoundError(uri)
	}

	chunk, err := s.store.GetChunkByID(ctx, parseChunkID(chunkID))
	if err != nil {
		return nil, MapError(err)
	}
	return &ResourceContent{
		URI:      uri,
		Content:  chunk.Body,
		MIMEType: mimeTypeForLanguage(chunk.CodeLang),
	}, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport, addr string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport), slog.String("addr", addr))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	return nil
}

// mimeTypeForLanguage returns the MIME type for a chunk's code language.
func mimeTypeForLanguage(lang string) string {
	if lang == "" {
		return "text/markdown"
	}
	return MimeTypeForPath("file." + lang)
}

// parseDocRef turns a tool argument into a store.DocRef, accepting the
// three forms spec.md §5 documents: "#<docid>", "gno://<collection>/
// <relPath>", and "<collection>/<relPath>[:line]" (mirrors
// cmd/gno/cmd/deps.go's parseDocRef).
func parseDocRef(arg string) store.DocRef {
	if strings.HasPrefix(arg, "#") {
		return store.DocRef{Docid: strings.TrimPrefix(arg, "#")}
	}
	if strings.HasPrefix(arg, "gno://") {
		return store.DocRef{URI: arg}
	}

	rest := arg
	line := 0
	if idx := strings.LastIndex(rest, ":"); idx > 0 {
		if n, err := strconv.Atoi(rest[idx+1:]); err == nil {
			line = n
			rest = rest[:idx]
		}
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return store.DocRef{URI: arg}
	}
	return store.DocRef{Collection: parts[0], RelPath: parts[1], Line: line}
}

// parseChunkID parses a chunk:// resource URI's numeric id, returning 0
// (a never-valid row id) on malformed input rather than erroring here —
// the store lookup surfaces the actual not-found error.
func parseChunkID(s string) int64 {
	var id int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		id = id*10 + int64(r-'0')
	}
	return id
}
