package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmickel/gno/internal/search"
	"github.com/gmickel/gno/internal/store"
	"github.com/gmickel/gno/internal/telemetry"
)

func TestRegisterResources_RegistersOnePerDocument(t *testing.T) {
	srv, _ := newTestServer(t)
	err := srv.RegisterResources(context.Background(), store.ListScope{})
	require.NoError(t, err)
}

func TestHandleReadDocumentResource_ReturnsChunkBodies(t *testing.T) {
	srv, st := newTestServer(t)
	doc, err := st.GetDocument(context.Background(), store.DocRef{URI: "gno://notes/intro.md"})
	require.NoError(t, err)

	result, err := srv.handleReadDocumentResource(context.Background(), doc.ID, doc.URI)
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Contains(t, result.Contents[0].Text, "Hello world.")
	assert.Equal(t, "text/markdown", result.Contents[0].MIMEType)
}

func TestHandleReadDocumentResource_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	_, err := srv.handleReadDocumentResource(context.Background(), 99999, "gno://notes/missing.md")
	require.Error(t, err)
}

func TestQueryMetricsResource_ReportsSnapshot(t *testing.T) {
	st := newTestStore(t)
	sqliteStore, ok := st.(*store.SQLiteStore)
	require.True(t, ok)
	require.NoError(t, telemetry.InitTelemetrySchema(sqliteStore.DB()))
	mstore, err := telemetry.NewSQLiteMetricsStore(sqliteStore.DB())
	require.NoError(t, err)
	metrics := telemetry.NewQueryMetrics(mstore)
	t.Cleanup(func() { _ = metrics.Close() })

	metrics.Record(telemetry.QueryEvent{Query: "hello world", QueryType: telemetry.QueryTypeLexical, ResultCount: 1})
	require.NoError(t, metrics.Flush())

	srv, err := NewServer(&search.Retrieval{Store: st}, st)
	require.NoError(t, err)
	srv.SetMetrics(metrics)

	handler := srv.makeQueryMetricsHandler()
	result, err := handler(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Contains(t, result.Contents[0].Text, "total_queries")
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)
}

func TestQueryMetricsResource_NilMetrics_ReturnsInvalidParams(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.makeQueryMetricsHandler()
	_, err := handler(context.Background(), nil)
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}
