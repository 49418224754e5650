package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gmickel/gno/internal/chunk"
	"github.com/gmickel/gno/internal/config"
	"github.com/gmickel/gno/internal/convert"
	"github.com/gmickel/gno/internal/embed"
	"github.com/gmickel/gno/internal/index"
	"github.com/gmickel/gno/internal/search"
	"github.com/gmickel/gno/internal/store"
	"github.com/gmickel/gno/internal/telemetry"
	"github.com/gmickel/gno/internal/ui"
)

// appContext bundles the store, model preset, and retrieval engine every
// document/search/ingest command needs, built once from the resolved
// configuration (spec.md §6).
type appContext struct {
	cfg     *config.Config
	store   store.Store
	preset  *embed.Preset
	runner  *index.Runner
	search  *search.Retrieval
	metrics *telemetry.QueryMetrics
}

// openApp loads the user configuration, opens the store, and resolves the
// active model preset. withModels controls whether the (possibly slow,
// possibly network-backed) embedding/rerank/generation ports are resolved
// at all — commands like `ls`/`tags`/`doctor` that never touch a model
// pass false.
func openApp(ctx context.Context, withModels bool) (*appContext, error) {
	return openAppWithPreset(ctx, withModels, "")
}

// openAppWithPreset is openApp with an explicit preset override; an empty
// forcePreset falls back to the configured/active preset.
func openAppWithPreset(ctx context.Context, withModels bool, forcePreset embed.PresetName) (*appContext, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dbPath, err := config.StoreFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(parentDir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	app := &appContext{cfg: cfg, store: st, search: &search.Retrieval{Store: st}}

	if sqliteStore, ok := st.(*store.SQLiteStore); ok {
		if err := telemetry.InitTelemetrySchema(sqliteStore.DB()); err == nil {
			if mstore, err := telemetry.NewSQLiteMetricsStore(sqliteStore.DB()); err == nil {
				app.metrics = telemetry.NewQueryMetrics(mstore)
			}
		}
	}

	if !withModels {
		return app, nil
	}

	registry := embed.NewModelRegistry()
	presetName := embed.PresetStatic
	if cfg.Models != nil {
		presetName = embed.ParsePresetName(cfg.Models.ActivePreset)
	}
	if config.IsOffline() {
		presetName = embed.PresetStatic
	}
	if forcePreset != "" {
		presetName = forcePreset
	}
	preset, err := registry.Resolve(ctx, presetName)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("resolve model preset: %w", err)
	}
	app.preset = preset
	app.search.Embedding = preset.Embedding
	app.search.Rerank = preset.Rerank
	app.search.Generation = preset.Generation
	app.search.ModelID = preset.Embedding.ModelName()

	return app, nil
}

// openRunner builds an ingestion Runner on top of an already-open
// appContext, adding the converter registry, chunker, and progress
// renderer the `update` command needs.
func (a *appContext) openRunner(noColor bool) error {
	renderer := ui.NewRenderer(ui.NewConfig(os.Stdout, ui.WithNoColor(noColor)))

	var embedder embed.EmbeddingPort
	if a.preset != nil {
		embedder = a.preset.Embedding
	}

	runner, err := index.NewRunner(index.RunnerDependencies{
		Store:      a.store,
		Converters: convert.NewRegistry(),
		Chunker:    chunk.NewMarkdownChunker(),
		Embedder:   embedder,
		Renderer:   renderer,
	})
	if err != nil {
		return err
	}
	a.runner = runner
	return nil
}

// Close releases the store and any open model ports.
func (a *appContext) Close() {
	if a.metrics != nil {
		_ = a.metrics.Flush()
		_ = a.metrics.Close()
	}
	if a.preset != nil {
		a.preset.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// recordQuery records a completed retrieval call to local query telemetry.
// A nil metrics collector (e.g. telemetry schema init failed) is a silent
// no-op; telemetry never blocks or fails a query.
func (a *appContext) recordQuery(queryType telemetry.QueryType, query string, resultCount int, latency time.Duration) {
	if a.metrics == nil {
		return
	}
	a.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		QueryType:   queryType,
		ResultCount: resultCount,
		Latency:     latency,
		Timestamp:   time.Now(),
	})
}

// parseDocRef turns a CLI positional argument into a store.DocRef,
// accepting the three forms spec.md §5 documents: "#<docid>",
// "gno://<collection>/<relPath>", and "<collection>/<relPath>[:line]".
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

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
