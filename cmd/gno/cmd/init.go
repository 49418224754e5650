package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gmickel/gno/internal/config"
)

// newInitCmd creates the `gno init` command: it lays down the persisted
// state layout spec.md §6 describes (config/index.yml, data/, cache/) and
// registers the current working directory as the first collection, the
// way the teacher's init command bootstraps a fresh project.
func newInitCmd() *cobra.Command {
	var (
		name    string
		pattern string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create the config/data/cache layout and register a collection",
		Long: `Initialize gno's persisted state: create the config, data and cache
directories and write config/index.yml. The path (default: the current
directory) is registered as a collection in config/index.yml. The index
database is created by later commands such as 'gno update'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runInit(cmd, path, name, pattern, force)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Collection name (default: directory base name)")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Glob pattern restricting ingested files")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing collection of the same name")

	return cmd
}

func runInit(cmd *cobra.Command, path, name, pattern string, force bool) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", absPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", absPath)
	}

	if name == "" {
		name = filepath.Base(absPath)
	}
	if err := config.ValidateCollectionName(name); err != nil {
		return fmt.Errorf("invalid collection name %q: %w", name, err)
	}

	for _, dir := range []func() (string, error){config.ConfigDir, config.DataDir, config.CacheDir} {
		d, err := dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}

	cfgPath, err := config.ConfigFilePath()
	if err != nil {
		return err
	}

	cfg := config.NewConfig()
	if config.ConfigExists() {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load existing config: %w", err)
		}
		cfg = loaded
	}

	for i, c := range cfg.Collections {
		if c.Name == name {
			if !force {
				return fmt.Errorf("collection %q already exists (use --force to overwrite)", name)
			}
			cfg.Collections = append(cfg.Collections[:i], cfg.Collections[i+1:]...)
			break
		}
	}

	cfg.Collections = append(cfg.Collections, config.CollectionConfig{
		Name:    name,
		Path:    absPath,
		Pattern: pattern,
	})

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(cfgPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", cfgPath, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Registered collection %q at %s\nConfig: %s\n\nRun 'gno update' to ingest it.\n", name, absPath, cfgPath)
	return nil
}
