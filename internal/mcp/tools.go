package mcp

// SearchInput defines the input schema shared by search, vsearch, and
// query: the common retrieval options of spec.md §4.6.
type SearchInput struct {
	Query       string   `json:"query" jsonschema:"the search query to execute"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	MinScore    float64  `json:"min_score,omitempty" jsonschema:"drop results below this score"`
	Collections []string `json:"collections,omitempty" jsonschema:"restrict to these collections"`
	Language    string   `json:"language,omitempty" jsonschema:"restrict to documents with this language hint"`
	Full        bool     `json:"full,omitempty" jsonschema:"return the whole document's content instead of a snippet"`
	LineNumbers bool     `json:"line_numbers,omitempty" jsonschema:"annotate snippets with line numbers"`
}

// QueryInput extends SearchInput with the hybrid path's optional
// expansion/rerank toggles (spec.md §4.6).
type QueryInput struct {
	SearchInput
	NoExpand bool `json:"no_expand,omitempty" jsonschema:"disable LLM query expansion"`
	NoRerank bool `json:"no_rerank,omitempty" jsonschema:"disable cross-encoder rerank"`
}

// SearchOutput wraps a retrieval call's result list.
type SearchOutput struct {
	Query   string             `json:"query"`
	Mode    string             `json:"mode"`
	Results []SearchResultItem `json:"results"`
}

// SearchResultItem mirrors search.Result over the MCP wire.
type SearchResultItem struct {
	Docid        string  `json:"docid"`
	URI          string  `json:"uri"`
	Title        string  `json:"title,omitempty"`
	Collection   string  `json:"collection,omitempty"`
	Score        float64 `json:"score"`
	SnippetStart int     `json:"snippet_start,omitempty"`
	SnippetEnd   int     `json:"snippet_end,omitempty"`
	Snippet      string  `json:"snippet,omitempty"`
	CodeLang     string  `json:"code_lang,omitempty"`
}

// AskOutput wraps Ask's grounded-answer result (spec.md §4.6 step 3).
type AskOutput struct {
	Query           string             `json:"query"`
	Results         []SearchResultItem `json:"results"`
	Answer          string             `json:"answer,omitempty"`
	Citations       []CitationItem     `json:"citations,omitempty"`
	AnswerGenerated bool               `json:"answer_generated"`
}

// CitationItem mirrors search.Citation over the MCP wire.
type CitationItem struct {
	N         int    `json:"n"`
	Docid     string `json:"docid"`
	URI       string `json:"uri"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// GetInput defines the input schema for the get tool.
type GetInput struct {
	Ref string `json:"ref" jsonschema:"document reference: #docid, gno://uri, or collection/relPath[:line]"`
}

// GetOutput defines the output schema for the get tool.
type GetOutput struct {
	Docid      string   `json:"docid"`
	URI        string   `json:"uri"`
	Title      string   `json:"title"`
	Collection string   `json:"collection"`
	Content    string   `json:"content"`
	Chunks     []string `json:"chunks,omitempty"`
}

// MultiGetInput defines the input schema for the multi_get tool.
type MultiGetInput struct {
	Refs []string `json:"refs" jsonschema:"one or more document references"`
}

// MultiGetOutput wraps multiple GetOutput results, tolerating per-ref
// errors the way the CLI's multi-get keeps going on a bad ref.
type MultiGetOutput struct {
	Documents []GetOutput       `json:"documents"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// LsInput defines the input schema for the ls tool.
type LsInput struct {
	Collection string `json:"collection,omitempty" jsonschema:"collection to list"`
	Prefix     string `json:"prefix,omitempty" jsonschema:"restrict to this relative path prefix"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum documents to list, default 100"`
	Offset     int    `json:"offset,omitempty" jsonschema:"offset into the result set"`
}

// LsOutput defines the output schema for the ls tool.
type LsOutput struct {
	Documents []LsDocument `json:"documents"`
}

// LsDocument is one row of ls output.
type LsDocument struct {
	Docid      string `json:"docid"`
	URI        string `json:"uri"`
	Title      string `json:"title"`
	Collection string `json:"collection"`
}

// IndexStatusInput defines the input schema for the index_status tool
// (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput reports store-wide counts and the active embedder's
// runtime state, so AI clients can adjust search strategy the way the
// CLI's `gno status`/`gno doctor` do.
type IndexStatusOutput struct {
	CollectionCount int    `json:"collection_count"`
	DocumentCount   int    `json:"document_count"`
	ChunkCount      int    `json:"chunk_count"`
	EmbeddingCount  int    `json:"embedding_count"`
	EmbedderModel   string `json:"embedder_model"`
	EmbedderStatus  string `json:"embedder_status"`
}
