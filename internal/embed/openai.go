package embed

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Default model names for the OpenAI-compatible preset. These match
// OpenAI's own catalog but work equally against any compatible endpoint
// (LM Studio, OpenRouter, vLLM) that maps them to a locally served model.
const (
	DefaultOpenAIEmbeddingModel  = string(openai.SmallEmbedding3)
	DefaultOpenAIGenerationModel = string(openai.GPT4oMini)
)

// newOpenAICompatibleClient builds a go-openai client pointed at an
// arbitrary base URL, the way aqua777's llm/openai client overrides BaseURL
// to target non-OpenAI-hosted endpoints.
func newOpenAICompatibleClient(baseURL, apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return openai.NewClientWithConfig(cfg)
}

// openAIEmbeddingPort implements EmbeddingPort against an OpenAI-compatible
// /v1/embeddings endpoint.
type openAIEmbeddingPort struct {
	client *openai.Client
	model  string
	dims   int
}

func (p *openAIEmbeddingPort) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *openAIEmbeddingPort) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai-compatible embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.New("openai-compatible embeddings: response count mismatch")
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if p.dims == 0 {
			p.dims = len(d.Embedding)
		}
		out[i] = d.Embedding
	}
	return out, nil
}

func (p *openAIEmbeddingPort) Dimensions() int  { return p.dims }
func (p *openAIEmbeddingPort) ModelName() string { return p.model }

func (p *openAIEmbeddingPort) Available(ctx context.Context) bool {
	_, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{"ping"},
		Model: openai.EmbeddingModel(p.model),
	})
	return err == nil
}

func (p *openAIEmbeddingPort) Close() error { return nil }

// SetBatchIndex and SetFinalBatch are no-ops: OpenAI-compatible endpoints
// have no thermal-throttling timeout progression to track, but the methods
// are needed to satisfy Embedder so this port can be wrapped by CachedEmbedder.
func (p *openAIEmbeddingPort) SetBatchIndex(_ int)     {}
func (p *openAIEmbeddingPort) SetFinalBatch(_ bool) {}

// openAIGenerationPort implements GenerationPort against an
// OpenAI-compatible chat-completions endpoint.
type openAIGenerationPort struct {
	client *openai.Client
	model  string
}

func (p *openAIGenerationPort) Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = float32(opts.Temperature)
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai-compatible chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai-compatible chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *openAIGenerationPort) Available(ctx context.Context) bool {
	_, err := p.client.ListModels(ctx)
	return err == nil
}

func (p *openAIGenerationPort) Close() error { return nil }

// openAIRerankPort scores documents via the same chat-completion model used
// for generation, since most OpenAI-compatible endpoints expose no
// dedicated rerank API.
type openAIRerankPort struct {
	client *openai.Client
	model  string
}

func (p *openAIRerankPort) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	gen := &openAIGenerationPort{client: p.client, model: p.model}
	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		snippet := doc
		if len(snippet) > 2000 {
			snippet = snippet[:2000]
		}
		prompt := fmt.Sprintf(
			"Rate how relevant the passage is to the query on a scale from 0.0 to 1.0. "+
				"Reply with only the number.\n\nQuery: %s\n\nPassage:\n%s\n\nScore:",
			query, snippet)
		out, err := gen.Generate(ctx, prompt, GenerationOptions{MaxTokens: 8})
		score := 0.5
		if err == nil {
			score = parseRerankScore(out)
		}
		results[i] = RerankResult{Index: i, Score: score, Text: doc}
	}

	for i := 1; i < len(results); i++ {
		j := i
		for j > 0 && results[j-1].Score < results[j].Score {
			results[j-1], results[j] = results[j], results[j-1]
			j--
		}
	}
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (p *openAIRerankPort) Available(ctx context.Context) bool {
	gen := &openAIGenerationPort{client: p.client, model: p.model}
	return gen.Available(ctx)
}

func (p *openAIRerankPort) Close() error { return nil }
