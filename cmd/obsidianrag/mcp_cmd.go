package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "github.com/molino-labs/obsidianrag/internal/mcp"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP stdio server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := mcpserver.NewServer(mcpserver.Deps{
				Config:    a.cfg,
				Vault:     a.vault,
				Policy:    a.policy,
				Store:     a.store,
				Writer:    a.writer,
				Retriever: a.retriever,
				Indexer:   a.indexer,
				Analyzer:  a.analyzer,
				Suggester: a.suggester,
				Skills:    a.skills,
				Logger:    a.logger,
				Version:   Version,
			})
			if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
