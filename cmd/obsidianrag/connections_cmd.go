package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/molino-labs/obsidianrag/internal/analyzer"
	"github.com/molino-labs/obsidianrag/internal/cli"
)

func connectionsCmd() *cobra.Command {
	var (
		threshold   float64
		limit       int
		folders     []string
		excludeMOCs bool
		minWords    int
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "connections",
		Short: "Suggest unlinked notes that discuss the same topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			timeout := time.Duration(a.cfg.Search.TimeoutSeconds) * time.Second
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if _, err := a.indexer.EnsureIndex(ctx, false); err != nil {
				return err
			}

			suggestions, err := a.analyzer.FindConnections(ctx, analyzer.Options{
				Threshold:      threshold,
				Limit:          limit,
				IncludeFolders: folders,
				ExcludeMOCs:    excludeMOCs,
				MinWords:       minWords,
			})
			if err != nil {
				return err
			}

			if asJSON {
				data, _ := json.MarshalIndent(suggestions, "", "  ")
				fmt.Println(string(data))
				return nil
			}
			if len(suggestions) == 0 {
				fmt.Println("No unlinked connections above the threshold.")
				return nil
			}
			for _, s := range suggestions {
				fmt.Printf("%s%.3f%s  %s  %s<->%s  %s\n",
					cli.Bold, s.Similarity, cli.Reset, s.NoteA, cli.Dim, cli.Reset, s.NoteB)
				if s.Reason != "" {
					fmt.Printf("       %s%s%s\n", cli.Dim, s.Reason, cli.Reset)
				}
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum cosine similarity (default 0.70)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max pairs returned (default 10)")
	cmd.Flags().StringArrayVar(&folders, "folder", nil, "Restrict to a vault folder (repeatable)")
	cmd.Flags().BoolVar(&excludeMOCs, "exclude-mocs", true, "Skip index-style notes")
	cmd.Flags().IntVar(&minWords, "min-words", 0, "Skip chunks shorter than this (default 100)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Machine-readable output")
	return cmd
}
