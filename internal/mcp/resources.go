package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gmickel/gno/internal/store"
)

// RegisterResources loads indexed documents and registers them as MCP
// resources, so clients can browse the store without issuing a search
// first. scope restricts the set the way `gno ls` does.
func (s *Server) RegisterResources(ctx context.Context, scope store.ListScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.store.ListDocuments(ctx, scope, store.OrderURIAscending, 10000, 0)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	for _, d := range docs {
		s.registerDocumentResource(d)
	}
	s.logger.Info("registered resources", "count", len(docs))
	return nil
}

// registerDocumentResource registers a single document as an MCP
// resource, read lazily via chunk:// sub-resources resolved by
// ReadResource.
func (s *Server) registerDocumentResource(d *store.Document) {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        d.Title,
			URI:         d.URI,
			Description: fmt.Sprintf("%s (#%s)", d.RelPath, d.Docid),
			MIMEType:    MimeTypeForPath(d.RelPath),
		},
		s.makeDocumentHandler(d.ID),
	)
}

// makeDocumentHandler creates a read handler for a specific document.
func (s *Server) makeDocumentHandler(documentID int64) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return s.handleReadDocumentResource(ctx, documentID, req.Params.URI)
	}
}

// handleReadDocumentResource concatenates a document's chunks into one
// resource body (mirrors cmd/gno/cmd/get.go's getOne).
func (s *Server) handleReadDocumentResource(ctx context.Context, documentID int64, uri string) (*mcp.ReadResourceResult, error) {
	doc, err := s.store.GetDocumentByID(ctx, documentID)
	if err != nil {
		return nil, MapError(err)
	}
	chunks, err := s.store.GetChunks(ctx, documentID)
	if err != nil {
		return nil, MapError(err)
	}

	content := ""
	for i, c := range chunks {
		if i > 0 {
			content += "\n\n"
		}
		content += c.Body
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: MimeTypeForPath(doc.RelPath),
				Text:     content,
			},
		},
	}, nil
}

// QueryMetricsOutput is the JSON structure for the query_metrics
// resource, mirroring cmd/gno/cmd/stats.go's StatsQueriesOutput so the
// MCP and CLI surfaces report identical shapes from the same
// internal/telemetry snapshot.
type QueryMetricsOutput struct {
	Summary             QueryMetricsSummary `json:"summary"`
	QueryTypeCounts     map[string]int64    `json:"query_type_counts"`
	TopTerms            []QueryTermCount    `json:"top_terms"`
	ZeroResultQueries   []string            `json:"zero_result_queries"`
	LatencyDistribution map[string]int64    `json:"latency_distribution"`
}

// QueryMetricsSummary provides overview statistics.
type QueryMetricsSummary struct {
	TotalQueries  int64   `json:"total_queries"`
	ZeroResultPct float64 `json:"zero_result_pct"`
}

// QueryTermCount represents a term and its frequency.
type QueryTermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// registerQueryMetricsResource registers the query_metrics resource.
func (s *Server) registerQueryMetricsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_metrics",
			URI:         "gno://query_metrics",
			Description: "Query pattern telemetry for search optimization",
			MIMEType:    "application/json",
		},
		s.makeQueryMetricsHandler(),
	)
}

// makeQueryMetricsHandler creates a handler for the query_metrics resource.
func (s *Server) makeQueryMetricsHandler() mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		s.mu.RLock()
		metrics := s.metrics
		s.mu.RUnlock()

		if metrics == nil {
			return nil, NewInvalidParamsError("query metrics not available")
		}

		snapshot := metrics.Snapshot()

		output := QueryMetricsOutput{
			Summary: QueryMetricsSummary{
				TotalQueries:  snapshot.TotalQueries,
				ZeroResultPct: snapshot.ZeroResultPercentage(),
			},
			QueryTypeCounts:     make(map[string]int64),
			TopTerms:            make([]QueryTermCount, 0, len(snapshot.TopTerms)),
			ZeroResultQueries:   snapshot.ZeroResultQueries,
			LatencyDistribution: make(map[string]int64),
		}

		for qt, count := range snapshot.QueryTypeCounts {
			output.QueryTypeCounts[string(qt)] = count
		}
		for _, tc := range snapshot.TopTerms {
			output.TopTerms = append(output.TopTerms, QueryTermCount{Term: tc.Term, Count: tc.Count})
		}
		for bucket, count := range snapshot.LatencyDistribution {
			output.LatencyDistribution[string(bucket)] = count
		}

		content, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return nil, MapError(err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      "gno://query_metrics",
					MIMEType: "application/json",
					Text:     string(content),
				},
			},
		}, nil
	}
}
