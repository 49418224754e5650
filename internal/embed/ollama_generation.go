package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaGenerationModel is used for the `ask` grounded-answer path
// when no generation preset model is configured.
const DefaultOllamaGenerationModel = "qwen2.5:3b-instruct"

// OllamaGenerationPort implements GenerationPort against Ollama's
// /api/generate endpoint, the non-streaming sibling of the /api/embed call
// OllamaEmbedder already uses.
type OllamaGenerationPort struct {
	host   string
	model  string
	client *http.Client
}

// NewOllamaGenerationPort builds a generation port against host for model.
func NewOllamaGenerationPort(host, model string) *OllamaGenerationPort {
	return &OllamaGenerationPort{
		host:   host,
		model:  model,
		client: &http.Client{Timeout: DefaultColdTimeout},
	}
}

type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends prompt to Ollama and returns the completed response text.
func (g *OllamaGenerationPort) Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultWarmTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	options := map[string]interface{}{}
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}

	body, err := json.Marshal(ollamaGenerateRequest{Model: g.model, Prompt: prompt, Stream: false, Options: options})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, g.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama generate returned status %d: %s", resp.StatusCode, string(data))
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	return out.Response, nil
}

// Available pings Ollama's root endpoint to check the server is reachable.
func (g *OllamaGenerationPort) Available(ctx context.Context) bool {
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, g.host+"/", nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases the underlying HTTP transport's idle connections.
func (g *OllamaGenerationPort) Close() error {
	g.client.CloseIdleConnections()
	return nil
}

// OllamaRerankPort scores (query, document) pairs by asking a chat model to
// emit a single relevance number per document, since Ollama has no native
// cross-encoder rerank endpoint the way a dedicated MLX server does.
type OllamaRerankPort struct {
	gen *OllamaGenerationPort
}

// NewOllamaRerankPort builds a prompt-scored reranker backed by model.
func NewOllamaRerankPort(host, model string) *OllamaRerankPort {
	return &OllamaRerankPort{gen: NewOllamaGenerationPort(host, model)}
}

// Rerank scores each document independently via a single-number relevance
// prompt and sorts descending. Failures on an individual document fall back
// to a neutral mid-range score rather than aborting the whole batch.
func (r *OllamaRerankPort) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		score := r.scoreOne(ctx, query, doc)
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

func (r *OllamaRerankPort) scoreOne(ctx context.Context, query, doc string) float64 {
	snippet := doc
	if len(snippet) > 2000 {
		snippet = snippet[:2000]
	}
	prompt := fmt.Sprintf(
		"Rate how relevant the passage is to the query on a scale from 0.0 to 1.0. "+
			"Reply with only the number.\n\nQuery: %s\n\nPassage:\n%s\n\nScore:",
		query, snippet)

	out, err := r.gen.Generate(ctx, prompt, GenerationOptions{MaxTokens: 8, Timeout: 10 * time.Second})
	if err != nil {
		return 0.5
	}
	return parseRerankScore(out)
}

func parseRerankScore(s string) float64 {
	s = strings.TrimSpace(s)
	var score float64
	if n, err := fmt.Sscanf(s, "%f", &score); err != nil || n != 1 {
		return 0.5
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Available delegates to the underlying generation port's reachability check.
func (r *OllamaRerankPort) Available(ctx context.Context) bool { return r.gen.Available(ctx) }

// Close releases the underlying generation port's resources.
func (r *OllamaRerankPort) Close() error { return r.gen.Close() }
