package embed

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// PresetName identifies a named combination of embedding/rerank/generation
// backends, the way the teacher's AMANMCP_EMBEDDER env var picked a single
// ProviderType but now spans all three LLM ports at once.
type PresetName string

const (
	// PresetOllama uses Ollama for embedding and generation, and for
	// reranking a prompt-scored Ollama chat model when a rerank model is
	// configured (a no-op reranker otherwise). Cross-platform, no API key
	// required.
	PresetOllama PresetName = "ollama"

	// PresetOpenAICompatible targets any OpenAI-compatible HTTP endpoint
	// (LM Studio, OpenRouter, vLLM, or the real OpenAI API) for all three
	// ports, selected by base URL rather than by vendor.
	PresetOpenAICompatible PresetName = "openai-compatible"

	// PresetStatic uses the deterministic hash embedder and a no-op
	// reranker/generator. Always available, used in tests and as the
	// last-resort fallback so hybrid search stays exercisable offline.
	PresetStatic PresetName = "static"
)

// Preset bundles the three ports an active model configuration resolves to.
type Preset struct {
	Name       PresetName
	Embedding  EmbeddingPort
	Rerank     RerankPort
	Generation GenerationPort
}

// Close releases all three ports' resources.
func (p *Preset) Close() error {
	var firstErr error
	for _, c := range []interface {
		Close() error
	}{p.Embedding, p.Rerank, p.Generation} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ModelRegistry resolves a preset name to its bundle of ports, generalizing
// the teacher's NewEmbedder provider switch to cover rerank and generation
// as well as embedding.
type ModelRegistry struct {
	// EmbeddingModel overrides the embedding model name within a preset.
	EmbeddingModel string
	// GenerationModel overrides the generation/chat model name within a preset.
	GenerationModel string
	// RerankModel overrides the cross-encoder/rerank model name within a preset.
	RerankModel string
}

// NewModelRegistry returns a registry with default (empty) model overrides;
// callers set the *Model fields from config.ModelsConfig before Resolve.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{}
}

// Resolve builds the port bundle for a named preset. An empty name resolves
// to PresetOllama, matching the teacher's default; an unrecognized name
// returns an error.
func (r *ModelRegistry) Resolve(ctx context.Context, name PresetName) (*Preset, error) {
	switch name {
	case PresetStatic:
		return r.resolveStatic(), nil
	case PresetOpenAICompatible:
		return r.resolveOpenAI(ctx)
	case PresetOllama, "":
		return r.resolveOllama(ctx)
	default:
		return nil, fmt.Errorf("unknown model preset %q", name)
	}
}

func (r *ModelRegistry) resolveStatic() *Preset {
	return &Preset{
		Name:       PresetStatic,
		Embedding:  NewStaticEmbedder768(),
		Rerank:     &noOpRerankPort{},
		Generation: &unavailableGenerationPort{reason: "static preset has no generation backend"},
	}
}

func (r *ModelRegistry) resolveOllama(ctx context.Context) (*Preset, error) {
	cfg := DefaultOllamaConfig()
	if r.EmbeddingModel != "" && isOllamaModelName(r.EmbeddingModel) {
		cfg.Model = r.EmbeddingModel
	}
	if host := os.Getenv("GNO_OLLAMA_HOST"); host != "" {
		cfg.Host = host
	}
	embedder, err := NewOllamaEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve ollama preset: %w", err)
	}
	var embedding EmbeddingPort = embedder
	if !isCacheDisabled() {
		embedding = NewCachedEmbedderWithDefaults(embedder)
	}

	genModel := r.GenerationModel
	if genModel == "" {
		genModel = DefaultOllamaGenerationModel
	}
	gen := NewOllamaGenerationPort(cfg.Host, genModel)

	rerankModel := r.RerankModel
	var rerank RerankPort = &noOpRerankPort{}
	if rerankModel != "" {
		rerank = NewOllamaRerankPort(cfg.Host, rerankModel)
	}

	return &Preset{Name: PresetOllama, Embedding: embedding, Rerank: rerank, Generation: gen}, nil
}

func (r *ModelRegistry) resolveOpenAI(_ context.Context) (*Preset, error) {
	baseURL := os.Getenv("GNO_OPENAI_BASE_URL")
	apiKey := os.Getenv("GNO_OPENAI_API_KEY")
	if baseURL == "" {
		return nil, fmt.Errorf("openai-compatible preset requires GNO_OPENAI_BASE_URL")
	}

	embedModel := r.EmbeddingModel
	if embedModel == "" {
		embedModel = DefaultOpenAIEmbeddingModel
	}
	genModel := r.GenerationModel
	if genModel == "" {
		genModel = DefaultOpenAIGenerationModel
	}

	client := newOpenAICompatibleClient(baseURL, apiKey)
	oaiEmbedder := &openAIEmbeddingPort{client: client, model: embedModel}
	var embedding EmbeddingPort = oaiEmbedder
	if !isCacheDisabled() {
		embedding = NewCachedEmbedderWithDefaults(oaiEmbedder)
	}
	return &Preset{
		Name:       PresetOpenAICompatible,
		Embedding:  embedding,
		Rerank:     &openAIRerankPort{client: client, model: genModel},
		Generation: &openAIGenerationPort{client: client, model: genModel},
	}, nil
}

// ParsePresetName normalizes a config/CLI string into a PresetName.
func ParsePresetName(s string) PresetName {
	return PresetName(strings.ToLower(strings.TrimSpace(s)))
}

type noOpRerankPort struct{}

func (n *noOpRerankPort) Rerank(_ context.Context, _ string, documents []string, topK int) ([]RerankResult, error) {
	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		results[i] = RerankResult{Index: i, Score: 1.0 - float64(i)*0.001, Text: doc}
	}
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (n *noOpRerankPort) Available(_ context.Context) bool { return true }
func (n *noOpRerankPort) Close() error                      { return nil }

type unavailableGenerationPort struct{ reason string }

func (u *unavailableGenerationPort) Generate(_ context.Context, _ string, _ GenerationOptions) (string, error) {
	return "", fmt.Errorf("generation unavailable: %s", u.reason)
}
func (u *unavailableGenerationPort) Available(_ context.Context) bool { return false }
func (u *unavailableGenerationPort) Close() error                     { return nil }
