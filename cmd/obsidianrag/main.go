// Package main is the entrypoint for the obsidianrag CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

// configPath is the global --config flag.
var configPath string

func main() {
	root := &cobra.Command{
		Use:   "obsidianrag",
		Short: "Knowledge-base MCP server for Obsidian vaults",
		Long:  "obsidianrag: hybrid semantic search, guarded writes and agent skills over a markdown vault.",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	root.AddCommand(mcpCmd())
	root.AddCommand(indexCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(connectionsCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(openCmd())
	root.AddCommand(versionCmd())

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: user config dir)")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the obsidianrag version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("obsidianrag %s\n", Version)
			return nil
		},
	}
}
