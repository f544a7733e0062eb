package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ncifuentes/crimrag/internal/auth"
	"github.com/ncifuentes/crimrag/internal/config"
	"github.com/ncifuentes/crimrag/internal/embedder"
	"github.com/ncifuentes/crimrag/internal/ingestion"
	"github.com/ncifuentes/crimrag/internal/llm"
	"github.com/ncifuentes/crimrag/internal/memory"
	"github.com/ncifuentes/crimrag/internal/repository/postgres"
	"github.com/ncifuentes/crimrag/internal/reranker"
	"github.com/ncifuentes/crimrag/internal/retriever"
	"github.com/ncifuentes/crimrag/internal/server"
	"github.com/ncifuentes/crimrag/internal/service"
	"github.com/ncifuentes/crimrag/internal/vectorstore"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	corpus, err := config.LoadCorpus(cfg.CorpusManifest)
	if err != nil {
		return fmt.Errorf("failed to load corpus manifest: %w", err)
	}

	slog.Info("starting crimrag service",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
		"partitions", len(corpus.Partitions),
	)

	// PostgreSQL: document registry, ingest jobs, query audit log
	db, err := postgres.New(ctx, postgres.Config{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DatabaseMaxConns,
		MinConns:        cfg.DatabaseMinConns,
		MaxConnLifetime: cfg.DatabaseConnTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	slog.Info("connected to PostgreSQL")

	docRepo := postgres.NewDocumentRepo(db)
	jobRepo := postgres.NewIngestJobRepo(db)
	logRepo := postgres.NewQueryLogRepo(db)

	// Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(ctx, cfg.QdrantGRPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer vectorStore.Close()
	slog.Info("connected to Qdrant")

	emb, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	slog.Info("initialized embedder", "provider", cfg.EmbedderProvider, "model", emb.ModelName())

	llmClient, err := llm.NewGroqClient(llm.GroqConfig{
		APIKey:  cfg.GroqAPIKey,
		BaseURL: cfg.GroqBaseURL,
		Model:   cfg.GroqModel,
	})
	if err != nil {
		return fmt.Errorf("failed to build LLM client: %w", err)
	}
	slog.Info("initialized LLM client", "model", cfg.GroqModel)

	// Ranking policy: corpus manifest drives partition priority, env config
	// drives the numeric tunables.
	policy := retriever.DefaultPolicy()
	policy.DefaultK = cfg.DefaultK
	policy.MaxK = cfg.MaxK
	policy.Lambda = cfg.MMRDiversity
	policy.PriorityPartitions = corpus.PriorityOrder()

	ret, err := retriever.New(vectorStore, emb, policy, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to build retriever: %w", err)
	}

	rerank := reranker.New(
		reranker.NewLLMScorer(llmClient, reranker.WithModel(cfg.GroqModel)),
		cfg.UseReranker,
		reranker.WithDefaultTier(policy.DefaultTier),
		reranker.WithLogger(slog.Default()),
	)

	ingestSvc, err := service.NewIngestService(docRepo, jobRepo, emb, vectorStore, corpus, ingestion.PipelineConfig{
		Segmenter: ingestion.SegmenterConfig{
			TargetSize:  cfg.ChunkSize,
			OverlapSize: cfg.ChunkOverlap,
			MinSize:     cfg.MinChunkSize,
		},
		DefaultReliability: cfg.DefaultSourceReliability,
	}, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to build ingest service: %w", err)
	}

	sessions := memory.DefaultStore()
	defer sessions.Close()

	retrievalSvc := service.NewRetrievalService(ret, llmClient, slog.Default(),
		service.WithReranker(rerank),
		service.WithQueryLog(logRepo),
		service.WithMemory(sessions),
	)
	defer retrievalSvc.Close()

	jwtManager := auth.NewJWTManager(&auth.JWTConfig{
		Secret: cfg.JWTSecret,
		Expiry: cfg.JWTExpiry,
		Issuer: "crimrag",
	})

	httpServer, err := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.HTTPPort,
		APIKey:         cfg.APIKey,
		Logger:         slog.Default(),
		AllowedOrigins: []string{"*"}, // Configure in production
		Ingest:         ingestSvc,
		Retrieval:      retrievalSvc,
		JWT:            jwtManager,
		Corpus:         corpus,
		Readiness: map[string]server.ReadinessCheck{
			"postgres": func(ctx context.Context) error { return db.Pool.Ping(ctx) },
			"qdrant": func(ctx context.Context) error {
				_, err := vectorStore.ListCollections(ctx)
				return err
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildEmbedder selects the embedding provider from configuration.
func buildEmbedder(cfg *config.Config) (embedder.Embedder, error) {
	switch cfg.EmbedderProvider {
	case "openai":
		return embedder.NewOpenAIEmbedder(embedder.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.EmbeddingModel,
		})
	case "ollama", "":
		return embedder.NewOllamaEmbedder(embedder.OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.EmbeddingModel,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", cfg.EmbedderProvider)
	}
}
