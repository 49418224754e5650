package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gmickel/gno/internal/config"
	"github.com/gmickel/gno/internal/preflight"
)

// newDoctorCmd creates `gno doctor`: diagnose disk/memory/permission
// health plus per-preset model reachability (spec.md §4.5).
func newDoctorCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check system requirements and model availability",
		Long: `Run diagnostics: disk space, memory, write permissions, file descriptor
limits, the active preset's embedding/rerank/generation reachability,
and the store's FTS tokenizer/schema compatibility.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runDoctor(cmd *cobra.Command, jsonOutput bool) error {
	ctx := cmd.Context()
	checker := preflight.New()

	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	results := []preflight.CheckResult{
		checker.CheckDiskSpace(dataDir),
		checker.CheckMemory(),
		checker.CheckWritePermissions(dataDir),
		checker.CheckFileDescriptors(),
	}
	results = append(results, checkModelPresets(ctx)...)
	results = append(results, checkStoreHealth(ctx))

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	checker.PrintResults(results)
	if checker.HasCriticalFailures(results) {
		return fmt.Errorf("doctor found critical failures")
	}
	return nil
}

func checkModelPresets(ctx context.Context) []preflight.CheckResult {
	var out []preflight.CheckResult
	app, err := openApp(ctx, true)
	if err != nil {
		out = append(out, preflight.CheckResult{
			Name:    "model_preset",
			Status:  preflight.StatusWarn,
			Message: fmt.Sprintf("could not resolve active preset: %v", err),
		})
		return out
	}
	defer app.Close()

	check := func(name string, available bool) preflight.CheckResult {
		status := preflight.StatusPass
		msg := "available"
		if !available {
			status = preflight.StatusWarn
			msg = "unavailable"
		}
		return preflight.CheckResult{Name: name, Status: status, Message: msg}
	}

	out = append(out,
		check("embedding_port", app.preset.Embedding != nil && app.preset.Embedding.Available(ctx)),
		check("rerank_port", app.preset.Rerank != nil && app.preset.Rerank.Available(ctx)),
		check("generation_port", app.preset.Generation != nil && app.preset.Generation.Available(ctx)),
	)
	return out
}

func checkStoreHealth(ctx context.Context) preflight.CheckResult {
	app, err := openApp(ctx, false)
	if err != nil {
		return preflight.CheckResult{Name: "store", Status: preflight.StatusFail, Message: err.Error(), Required: true}
	}
	defer app.Close()

	tokenizer, err := app.store.TokenizerInUse(ctx)
	if err != nil {
		return preflight.CheckResult{Name: "store", Status: preflight.StatusFail, Message: err.Error(), Required: true}
	}
	configured := app.cfg.FTSTokenizer
	if tokenizer != configured {
		return preflight.CheckResult{
			Name:    "fts_tokenizer",
			Status:  preflight.StatusWarn,
			Message: fmt.Sprintf("store uses %q, config requests %q", tokenizer, configured),
		}
	}
	return preflight.CheckResult{Name: "fts_tokenizer", Status: preflight.StatusPass, Message: tokenizer}
}
