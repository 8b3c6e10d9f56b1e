package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/molino-labs/obsidianrag/internal/analyzer"
	"github.com/molino-labs/obsidianrag/internal/indexer"
	"github.com/molino-labs/obsidianrag/internal/retriever"
	"github.com/molino-labs/obsidianrag/internal/store"
)

// connectionsDeadline bounds the all-pairs sweep when the client sends
// no deadline of its own.
const connectionsDeadline = 180 * time.Second

func (s *Server) registerSearchTools(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "semantic_query",
		Description: "Hybrid semantic search over the vault: dense embeddings fused with lexical ranking, optionally reranked. The index is refreshed incrementally before searching.",
	}, s.handleSemanticQuery)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "index_vault",
		Description: "Index the vault into the vector store. Incremental by default; force rebuilds from scratch.",
	}, s.handleIndexVault)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "suggest_connections",
		Description: "Find pairs of notes that discuss the same topic without linking to each other, ranked by embedding similarity.",
	}, s.handleSuggestConnections)
}

type semanticQueryInput struct {
	Question       string            `json:"question" jsonschema:"Natural language question"`
	MetadataFilter map[string]string `json:"metadata_filter,omitempty" jsonschema:"Front-matter key/value pairs a chunk must carry"`
	TopK           int               `json:"top_k,omitempty" jsonschema:"Max results (default from config)"`
}

func (s *Server) handleSemanticQuery(ctx context.Context, req *mcp.CallToolRequest, input semanticQueryInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.Question) == "" {
		return textResult("Error (validation): empty question"), nil, nil
	}
	timeout := time.Duration(s.cfg.Search.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := s.indexer.EnsureIndex(ctx, false); err != nil {
		// Search still works against whatever the store holds.
		s.logger.Warn("index refresh before query failed", zap.Error(err))
	}

	filter := s.chunkFilter(input.MetadataFilter)
	k := clampTopK(input.TopK, s.cfg.Search.MaxResults)
	var results []retriever.Result
	var err error
	if len(input.MetadataFilter) > 0 {
		results, err = s.retriever.SearchFiltered(ctx, input.Question, k, filter)
	} else {
		results, err = s.retriever.Search(ctx, input.Question, k, filter)
	}
	if err != nil {
		return errText(err), nil, nil
	}
	if len(results) == 0 {
		return textResult("No results."), nil, nil
	}

	var b strings.Builder
	for i, r := range results {
		rel := s.vault.Relative(r.Chunk.Source)
		fmt.Fprintf(&b, "%d. %s (score %.3f)\n", i+1, rel, r.Score)
		b.WriteString("   " + strings.ReplaceAll(s.sanitizeSnippet(r.Chunk.Text), "\n", " ") + "\n")
	}
	return textResult(strings.TrimRight(b.String(), "\n")), nil, nil
}

// chunkFilter combines the safety policy with an optional front-matter
// filter into one store predicate.
func (s *Server) chunkFilter(meta map[string]string) func(store.ChunkRecord) bool {
	return func(c store.ChunkRecord) bool {
		if forbidden, _ := s.policy.IsForbidden(c.Source); forbidden {
			return false
		}
		for k, want := range meta {
			if c.Meta[k] != want {
				return false
			}
		}
		return true
	}
}

type indexVaultInput struct {
	Force bool `json:"force" jsonschema:"Rebuild the whole index instead of only changed notes"`
}

func (s *Server) handleIndexVault(ctx context.Context, req *mcp.CallToolRequest, input indexVaultInput) (*mcp.CallToolResult, any, error) {
	stats, err := s.indexer.EnsureIndex(ctx, input.Force)
	if err != nil {
		return errText(err), nil, nil
	}
	sources, _ := s.store.SourceCount()
	chunks, _ := s.store.ChunkCount()
	out := struct {
		indexer.Stats
		Sources int `json:"indexed_sources"`
		Chunks  int `json:"indexed_chunks"`
	}{Stats: stats, Sources: sources, Chunks: chunks}
	return jsonResult(out), nil, nil
}

type suggestConnectionsInput struct {
	Threshold      float64  `json:"threshold,omitempty" jsonschema:"Minimum cosine similarity, 0-1 (default 0.70)"`
	Limit          int      `json:"limit,omitempty" jsonschema:"Max pairs returned (default 10)"`
	IncludeFolders []string `json:"include_folders,omitempty" jsonschema:"Restrict to these vault-relative folders"`
	ExcludeMOCs    bool     `json:"exclude_mocs" jsonschema:"Skip index-style notes (MOC, Home, Panel)"`
	MinWords       int      `json:"min_words,omitempty" jsonschema:"Skip chunks shorter than this many words (default 100)"`
}

func (s *Server) handleSuggestConnections(ctx context.Context, req *mcp.CallToolRequest, input suggestConnectionsInput) (*mcp.CallToolResult, any, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, connectionsDeadline)
		defer cancel()
	}

	if _, err := s.indexer.EnsureIndex(ctx, false); err != nil {
		return errText(err), nil, nil
	}

	suggestions, err := s.analyzer.FindConnections(ctx, analyzer.Options{
		Threshold:      input.Threshold,
		Limit:          input.Limit,
		IncludeFolders: input.IncludeFolders,
		ExcludeMOCs:    input.ExcludeMOCs,
		MinWords:       input.MinWords,
	})
	if err != nil {
		return errText(err), nil, nil
	}
	if len(suggestions) == 0 {
		return textResult("No unlinked connections above the threshold."), nil, nil
	}
	return jsonResult(suggestions), nil, nil
}
