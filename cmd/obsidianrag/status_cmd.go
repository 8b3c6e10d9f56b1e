package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/molino-labs/obsidianrag/internal/cli"
	"github.com/molino-labs/obsidianrag/internal/config"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show vault and index status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			notes := len(a.vault.Walk())
			chunks, err := a.store.ChunkCount()
			if err != nil {
				return err
			}
			sources, err := a.store.SourceCount()
			if err != nil {
				return err
			}
			skillList, err := a.skills.List()
			if err != nil {
				return err
			}

			cli.Header("obsidianrag status")

			cli.Section("Vault")
			fmt.Printf("  Path:       %s\n", cli.ShortenHome(a.vault.Root()))
			fmt.Printf("  Notes:      %s\n", cli.FormatNumber(notes))
			fmt.Printf("  Skills:     %d\n", len(skillList))

			cli.Section("Index")
			fmt.Printf("  Database:   %s\n", cli.ShortenHome(config.DBPath(a.vault.Root())))
			if info, err := os.Stat(config.TrackerPath(a.vault.Root())); err == nil {
				fmt.Printf("  Last index: %s\n", info.ModTime().Format("2006-01-02 15:04"))
			} else {
				fmt.Printf("  Last index: never\n")
			}
			fmt.Printf("  Sources:    %s\n", cli.FormatNumber(sources))
			fmt.Printf("  Chunks:     %s\n", cli.FormatNumber(chunks))
			if notes > 0 && sources < notes {
				fmt.Printf("  %s%d note(s) not indexed yet; run 'obsidianrag index'%s\n",
					cli.Yellow, notes-sources, cli.Reset)
			}

			cli.Section("Embedding")
			fmt.Printf("  Provider:   %s\n", a.provider.Name())
			fmt.Printf("  Model:      %s\n", a.provider.Model())
			fmt.Printf("  Dimensions: %d\n", a.provider.Dimensions())
			if a.cfg.Reranker.Enabled {
				fmt.Printf("  Reranker:   %s (%s)\n", a.cfg.Reranker.Model, a.cfg.Reranker.URL)
			} else {
				fmt.Printf("  Reranker:   disabled\n")
			}
			fmt.Println()
			return nil
		},
	}
}
