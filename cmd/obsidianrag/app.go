package main

import (
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/molino-labs/obsidianrag/internal/analyzer"
	"github.com/molino-labs/obsidianrag/internal/cache"
	"github.com/molino-labs/obsidianrag/internal/config"
	"github.com/molino-labs/obsidianrag/internal/embedding"
	"github.com/molino-labs/obsidianrag/internal/indexer"
	"github.com/molino-labs/obsidianrag/internal/logging"
	"github.com/molino-labs/obsidianrag/internal/retriever"
	"github.com/molino-labs/obsidianrag/internal/safety"
	"github.com/molino-labs/obsidianrag/internal/skills"
	"github.com/molino-labs/obsidianrag/internal/store"
	"github.com/molino-labs/obsidianrag/internal/suggester"
	"github.com/molino-labs/obsidianrag/internal/tracker"
	"github.com/molino-labs/obsidianrag/internal/vault"
	"github.com/molino-labs/obsidianrag/internal/watcher"
	"github.com/molino-labs/obsidianrag/internal/writer"
)

// app holds every wired service for one command invocation.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	vault     *vault.Vault
	policy    *safety.Policy
	store     *store.DB
	provider  embedding.Provider
	retriever *retriever.Retriever
	indexer   *indexer.Indexer
	analyzer  *analyzer.Analyzer
	suggester *suggester.Suggester
	writer    *writer.Writer
	skills    *skills.Service
	watcher   *watcher.Watcher
}

// newApp loads configuration and wires the full service graph. The
// caller owns Close.
func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	root, err := cfg.VaultPath()
	if err != nil {
		return nil, err
	}
	vs, err := config.LoadVaultSettings(root)
	if err != nil {
		return nil, err
	}
	excl, err := config.NewExclusions(vs)
	if err != nil {
		return nil, err
	}
	v := vault.New(root, excl)

	policy, err := safety.NewPolicy(root, vs.PrivateGlobs())
	if err != nil {
		return nil, err
	}

	provider, err := embedding.NewProvider(embedding.ProviderConfig{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     apiKey(cfg),
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	st, err := store.Open(config.DBPath(root), provider.Dimensions())
	if err != nil {
		return nil, err
	}

	tr := tracker.New(config.TrackerPath(root), root)
	if err := tr.Load(); err != nil {
		st.Close()
		return nil, err
	}

	var rr retriever.Reranker
	if cfg.Reranker.Enabled && cfg.Reranker.URL != "" {
		rr = retriever.NewHTTPReranker(cfg.Reranker.URL, cfg.Reranker.Model, 30*time.Second)
	}
	ret := retriever.New(st, provider, rr, logger, retriever.Options{
		RerankTopN: cfg.Reranker.TopN,
	})

	ix := indexer.New(v, st, provider, tr, logger, indexer.Options{
		ChunkSize:    cfg.Index.ChunkSize,
		ChunkOverlap: cfg.Index.ChunkOverlap,
		Workers:      cfg.Index.Workers,
	})

	names := cache.NewNameCache(time.Duration(cfg.Search.CacheTTLSeconds) * time.Second)
	w := writer.New(policy, v, names, config.TemplatesFolder(root, vs), "obsidianrag", logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		vault:     v,
		policy:    policy,
		store:     st,
		provider:  provider,
		retriever: ret,
		indexer:   ix,
		analyzer:  analyzer.New(st, v.Relative, logger),
		suggester: suggester.New(ret, v.Relative, logger),
		writer:    w,
		skills:    skills.New(root, config.DetectAgentDir(root), logger),
		watcher:   watcher.New(v, ix, logger),
	}, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// apiKey resolves the embedding API key from the configured environment
// variable. Only cloud providers need one.
func apiKey(cfg *config.Config) string {
	env := cfg.Embedding.APIKeyEnv
	if env == "" {
		env = "OPENAI_API_KEY"
	}
	return os.Getenv(env)
}
