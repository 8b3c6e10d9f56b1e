// Package mcp exposes the vault over the Model Context Protocol on
// stdio. Every tool returns text; failures are rendered as
// "Error (<kind>): ..." strings instead of protocol errors so the
// calling agent can recover.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mdombrov-33/go-promptguard/detector"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/molino-labs/obsidianrag/internal/analyzer"
	"github.com/molino-labs/obsidianrag/internal/config"
	"github.com/molino-labs/obsidianrag/internal/indexer"
	"github.com/molino-labs/obsidianrag/internal/result"
	"github.com/molino-labs/obsidianrag/internal/retriever"
	"github.com/molino-labs/obsidianrag/internal/safety"
	"github.com/molino-labs/obsidianrag/internal/skills"
	"github.com/molino-labs/obsidianrag/internal/store"
	"github.com/molino-labs/obsidianrag/internal/suggester"
	"github.com/molino-labs/obsidianrag/internal/vault"
	"github.com/molino-labs/obsidianrag/internal/writer"
)

// Server wires the vault services into MCP tools.
type Server struct {
	cfg       *config.Config
	vault     *vault.Vault
	policy    *safety.Policy
	store     *store.DB
	writer    *writer.Writer
	retriever *retriever.Retriever
	indexer   *indexer.Indexer
	analyzer  *analyzer.Analyzer
	suggester *suggester.Suggester
	skills    *skills.Service
	logger    *zap.Logger
	version   string
}

// Deps collect everything the server needs.
type Deps struct {
	Config    *config.Config
	Vault     *vault.Vault
	Policy    *safety.Policy
	Store     *store.DB
	Writer    *writer.Writer
	Retriever *retriever.Retriever
	Indexer   *indexer.Indexer
	Analyzer  *analyzer.Analyzer
	Suggester *suggester.Suggester
	Skills    *skills.Service
	Logger    *zap.Logger
	Version   string
}

// NewServer creates the tool server.
func NewServer(d Deps) *Server {
	return &Server{
		cfg:       d.Config,
		vault:     d.Vault,
		policy:    d.Policy,
		store:     d.Store,
		writer:    d.Writer,
		retriever: d.Retriever,
		indexer:   d.Indexer,
		analyzer:  d.Analyzer,
		suggester: d.Suggester,
		skills:    d.Skills,
		logger:    d.Logger,
		version:   d.Version,
	}
}

// Serve registers every tool and runs the stdio transport until the
// client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "obsidianrag",
		Version: s.version,
	}, nil)
	s.register(srv)
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) register(srv *mcp.Server) {
	s.registerNavTools(srv)
	s.registerWriteTools(srv)
	s.registerSearchTools(srv)
	s.registerSkillTools(srv)
}

// Helpers shared by every tool file.

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// errText renders a failure for the calling agent.
func errText(err error) *mcp.CallToolResult {
	return textResult(fmt.Sprintf("Error (%s): %s", result.KindOf(err), result.Message(err)))
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errText(result.Internalf("encode result: %v", err))
	}
	return textResult(string(data))
}

func clampTopK(topK, defaultVal int) int {
	if topK <= 0 {
		return defaultVal
	}
	if topK > 100 {
		return 100
	}
	return topK
}

// promptGuard screens vault-derived snippets before they reach the
// agent. Pattern and statistical detectors only, no LLM judge, so the
// check stays sub-millisecond.
var promptGuard = detector.New(
	detector.WithThreshold(0.6),
	detector.WithAllDetectors(),
	detector.WithMaxInputLength(1000),
)

// snippetMax caps how much of a chunk is echoed back in tool output.
const snippetMax = 300

// sanitizeSnippet truncates and screens a vault snippet. Flagged
// content is replaced wholesale rather than partially cleaned.
func (s *Server) sanitizeSnippet(text string) string {
	if len(text) > snippetMax {
		text = text[:snippetMax] + "..."
	}
	if len(text) == 0 {
		return text
	}
	res := promptGuard.Detect(context.Background(), text)
	if !res.Safe {
		s.logger.Warn("snippet flagged by injection screen")
		return "[contenido omitido]"
	}
	return text
}

type emptyInput struct{}
