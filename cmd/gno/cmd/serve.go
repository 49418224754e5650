package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gmickel/gno/internal/logging"
	"github.com/gmickel/gno/internal/mcp"
	"github.com/gmickel/gno/internal/store"
)

// newServeCmd creates `gno serve`: the MCP stdio server exposing
// search/vsearch/query/ask/get/multi_get/ls/index_status to AI clients
// like Claude Code and Cursor (spec.md §4.6, SPEC_FULL.md §A.5).
func newServeCmd() *cobra.Command {
	var transport string
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start gno as a Model Context Protocol server over stdio, so AI
coding assistants can call search, vsearch, query, ask, get, multi_get,
and ls directly instead of shelling out to the CLI.

The MCP protocol requires stdout to carry nothing but JSON-RPC
messages, so all logging during serve goes to a file, never stdout or
stderr.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transport, debug)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport to serve over (stdio)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug-level file logging")

	return cmd
}

func runServe(ctx context.Context, transport string, debug bool) error {
	if transport == "stdio" {
		if err := verifyStdinForMCP(); err != nil {
			return err
		}
	}

	var cleanup func()
	var err error
	if debug {
		cleanup, err = logging.SetupMCPModeWithLevel("debug")
	} else {
		cleanup, err = logging.SetupMCPMode()
	}
	if err != nil {
		return fmt.Errorf("setup MCP logging: %w", err)
	}
	defer cleanup()

	app, err := openApp(ctx, true)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer app.Close()

	server, err := mcp.NewServer(app.search, app.store)
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}
	defer server.Close()

	if app.metrics != nil {
		server.SetMetrics(app.metrics)
	}
	if err := server.RegisterResources(ctx, store.ListScope{}); err != nil {
		return fmt.Errorf("register resources: %w", err)
	}

	return server.Serve(ctx, transport, "")
}

// verifyStdinForMCP rejects an interactive terminal on stdin: the MCP
// protocol expects a pipe from the client process, and a server stuck
// waiting on a terminal looks hung rather than failed (mirrors
// internal/lifecycle's terminal-detection idiom).
func verifyStdinForMCP() error {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return fmt.Errorf("stat stdin: %w", err)
	}
	if (fi.Mode() & os.ModeCharDevice) != 0 {
		return fmt.Errorf("stdin is a terminal, not a pipe: gno serve expects to be launched by an MCP client, not run interactively")
	}
	return nil
}
