package embed

import (
	"context"
	"time"
)

// EmbeddingPort turns text into vectors. It is a narrower restatement of
// the Embedder interface, kept separate from RerankPort/GenerationPort so a
// preset can mix backends per concern (e.g. Ollama embeddings with an
// OpenAI-compatible generation model).
type EmbeddingPort interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error
}

// RerankResult is a single reranked candidate, indexed back into the
// caller's original slice so scores can be re-attached to richer chunk data.
type RerankResult struct {
	Index int
	Score float64
	Text  string
}

// RerankPort scores (query, document) pairs for relevance. Implementations
// may use a dedicated cross-encoder (Ollama-hosted or MLX) or fall back to
// prompting a chat model for a relevance score when no cross-encoder is
// configured for the active preset.
type RerankPort interface {
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)
	Available(ctx context.Context) bool
	Close() error
}

// GenerationPort produces free-text completions, used by the grounded-answer
// (`ask`) retrieval operation to synthesize a cited answer from context blocks.
type GenerationPort interface {
	Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error)
	Available(ctx context.Context) bool
	Close() error
}

// GenerationOptions tunes a single Generate call. Zero values take the
// backend's own defaults.
type GenerationOptions struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}
