package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gmickel/gno/internal/config"
)

// newCollectionCmd creates `gno collection`, the config-editing
// counterpart to `gno init`: list or remove collections without
// touching the store (spec.md §3/§6).
func newCollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "List or remove configured collections",
	}
	cmd.AddCommand(newCollectionListCmd())
	cmd.AddCommand(newCollectionRemoveCmd())
	return cmd
}

func newCollectionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured collections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			for _, c := range cfg.Collections {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", c.Name, c.Path)
			}
			return nil
		},
	}
}

func newCollectionRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a collection from config/index.yml (does not delete indexed documents)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			name := args[0]
			kept := cfg.Collections[:0]
			found := false
			for _, c := range cfg.Collections {
				if c.Name == name {
					found = true
					continue
				}
				kept = append(kept, c)
			}
			if !found {
				return fmt.Errorf("no collection named %q", name)
			}
			cfg.Collections = kept

			path, err := config.ConfigFilePath()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			return os.WriteFile(path, data, 0o644)
		},
	}
}

// newContextCmd creates `gno context`: attach descriptive text to a
// global, collection, or URI-prefix scope (spec.md §3 ContextConfig).
func newContextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Manage descriptive context attached to a scope",
	}
	cmd.AddCommand(newContextSetCmd())
	cmd.AddCommand(newContextListCmd())
	return cmd
}

func newContextSetCmd() *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "set <key> <text>",
		Short: "Set the context text for a scope key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			key, text := args[0], args[1]

			entry := config.ContextConfig{Scope: config.ContextScope(scope), Key: key, Text: text}
			replaced := false
			for i, c := range cfg.Contexts {
				if c.Scope == entry.Scope && c.Key == entry.Key {
					cfg.Contexts[i] = entry
					replaced = true
					break
				}
			}
			if !replaced {
				cfg.Contexts = append(cfg.Contexts, entry)
			}

			path, err := config.ConfigFilePath()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			return os.WriteFile(path, data, 0o644)
		},
	}
	cmd.Flags().StringVar(&scope, "scope", string(config.ContextScopeGlobal), "Scope kind: global, collection, or prefix")
	return cmd
}

func newContextListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured context entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			for _, c := range cfg.Contexts {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", c.Scope, c.Key, c.Text)
			}
			return nil
		},
	}
}
