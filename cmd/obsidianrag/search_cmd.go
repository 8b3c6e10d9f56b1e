package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/molino-labs/obsidianrag/internal/cli"
	"github.com/molino-labs/obsidianrag/internal/retriever"
	"github.com/molino-labs/obsidianrag/internal/store"
)

func searchCmd() *cobra.Command {
	var (
		limit    int
		folder   string
		asJSON   bool
		noIndex  bool
		metadata []string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Hybrid semantic search over the vault",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			query := strings.Join(args, " ")
			timeout := time.Duration(a.cfg.Search.TimeoutSeconds) * time.Second
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if !noIndex {
				if _, err := a.indexer.EnsureIndex(ctx, false); err != nil {
					return err
				}
			}

			filter, err := parseMetadata(metadata)
			if err != nil {
				return err
			}
			if folder != "" {
				filter = restrictToFolder(filter, folder, a.vault.Relative)
			}
			k := limit
			if k <= 0 {
				k = a.cfg.Search.MaxResults
			}
			var results []retriever.Result
			if len(metadata) > 0 {
				results, err = a.retriever.SearchFiltered(ctx, query, k, filter)
			} else {
				results, err = a.retriever.Search(ctx, query, k, filter)
			}
			if err != nil {
				return err
			}

			if asJSON {
				type hit struct {
					Path  string  `json:"path"`
					Score float64 `json:"score"`
					Text  string  `json:"text"`
				}
				out := make([]hit, 0, len(results))
				for _, r := range results {
					out = append(out, hit{
						Path:  a.vault.Relative(r.Chunk.Source),
						Score: r.Score,
						Text:  r.Chunk.Text,
					})
				}
				data, _ := json.MarshalIndent(out, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			if len(results) == 0 {
				fmt.Println("No results.")
				return nil
			}
			for i, r := range results {
				rel := a.vault.Relative(r.Chunk.Source)
				fmt.Printf("%s%2d.%s %s %s(%.3f)%s\n", cli.Bold, i+1, cli.Reset, rel, cli.Dim, r.Score, cli.Reset)
				fmt.Printf("    %s\n", firstLine(r.Chunk.Text))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results (default from config)")
	cmd.Flags().StringVar(&folder, "folder", "", "Restrict to one vault-relative folder")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Machine-readable output")
	cmd.Flags().BoolVar(&noIndex, "no-index", false, "Skip the incremental reindex before searching")
	cmd.Flags().StringArrayVar(&metadata, "meta", nil, "Front-matter filter, key=value (repeatable)")
	return cmd
}

func parseMetadata(pairs []string) (func(c store.ChunkRecord) bool, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	want := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --meta %q, want key=value", p)
		}
		want[k] = v
	}
	return func(c store.ChunkRecord) bool {
		for k, v := range want {
			if c.Meta[k] != v {
				return false
			}
		}
		return true
	}, nil
}

// restrictToFolder layers a vault-folder prefix check on top of an
// optional metadata filter.
func restrictToFolder(inner func(store.ChunkRecord) bool, folder string, relative func(string) string) func(store.ChunkRecord) bool {
	prefix := strings.TrimSuffix(folder, "/") + "/"
	return func(c store.ChunkRecord) bool {
		if inner != nil && !inner(c) {
			return false
		}
		return strings.HasPrefix(relative(c.Source), prefix)
	}
}

func firstLine(text string) string {
	line := strings.TrimSpace(text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if len(line) > 120 {
		line = line[:117] + "..."
	}
	return line
}
