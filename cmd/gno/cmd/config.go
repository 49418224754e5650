package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gmickel/gno/internal/config"
	"github.com/gmickel/gno/internal/output"
)

// newConfigCmd creates `gno config`: inspect or bootstrap the single
// config/index.yml file (spec.md §6, §I).
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
		Long: `Manage config/index.yml, the single configuration file covering
collections, model presets, retrieval tuning, and performance limits.

Precedence (lowest to highest):
  1. Hardcoded defaults
  2. config/index.yml
  3. GNO_* environment variables`,
		Example: `  # Create config/index.yml from defaults
  gno config init

  # Show the effective configuration
  gno config show

  # Print the config file path
  gno config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create config/index.yml from defaults",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Merge new default fields into an existing config")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.ConfigFilePath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())

	path, err := config.ConfigFilePath()
	if err != nil {
		return err
	}

	if config.ConfigExists() {
		if !force {
			out.Warning("Configuration already exists")
			out.Statusf("", "Location: %s", path)
			out.Newline()
			out.Status("", "Use --force to merge in new default fields (preserves your settings)")
			return nil
		}
		return runConfigUpgrade(out, path)
	}

	if err := config.NewConfig().WriteYAML(path); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	out.Success("Created configuration")
	out.Statusf("", "Location: %s", path)
	out.Newline()
	out.Status("", "Run 'gno init <path>' to register a collection.")
	return nil
}

func runConfigUpgrade(out *output.Writer, path string) error {
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return fmt.Errorf("load existing config: %w", err)
	}

	added := cfg.MergeNewDefaults()
	if err := cfg.WriteYAML(path); err != nil {
		return fmt.Errorf("write upgraded config: %w", err)
	}

	out.Success("Configuration upgraded")
	out.Statusf("", "Location: %s", path)
	out.Newline()
	if len(added) > 0 {
		out.Status("", "New fields added with defaults:")
		for _, field := range added {
			out.Statusf("", "  - %s", field)
		}
	} else {
		out.Status("", "Already up to date")
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
