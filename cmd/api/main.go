package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"groundchat/internal/citation"
	"groundchat/internal/config"
	"groundchat/internal/handlers"
	"groundchat/internal/http"
	"groundchat/internal/indexer"
	"groundchat/internal/llm"
	"groundchat/internal/rag"
	"groundchat/internal/render"
	"groundchat/internal/service"
	"groundchat/internal/storage"
	"groundchat/internal/vectorstore"
	"groundchat/internal/websearch"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API answers questions from a document knowledge base and the web, resolving the
// model's inline citations into stable, renumbered references.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: GroundChat API
//   description: |
//     Grounded question answering with citation resolution and renumbering.
//     Raw answers can also be processed or rendered directly through the citations endpoints.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	documentRepo := storage.NewDocumentRepo(db)
	chunkRepo := storage.NewChunkRepo(db)
	turnRepo := storage.NewTurnRepo(db)
	cacheRepo := storage.NewCacheRepo(db)

	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		return fmt.Errorf("create Qdrant client: %w", err)
	}
	defer func() {
		_ = vectorStore.Close()
	}()

	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
		return fmt.Errorf("ensure Qdrant collection: %w", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
	chatClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)

	var searcher websearch.Searcher
	if cfg.WebSearchEnabled() {
		searcher = websearch.NewClient(cfg.WebSearchURL, cfg.WebSearchAPIKey)
		slog.Info("Web search enabled", "url", cfg.WebSearchURL)
	}

	pipeline := indexer.NewPipeline(documentRepo, chunkRepo, embedder, vectorStore, cfg.QdrantCollection)
	retriever := rag.NewVectorRetriever(embedder, vectorStore, cfg.QdrantCollection, chunkRepo)

	engine := citation.NewEngine()
	citations, err := service.NewCitationService(engine, cacheRepo, cfg.CitationCacheSize)
	if err != nil {
		return fmt.Errorf("create citation service: %w", err)
	}
	ask := service.NewAskService(retriever, searcher, documentRepo, chatClient, citations, turnRepo, service.AskOptions{
		KBK:  cfg.KBTopK,
		WebK: cfg.WebTopK,
	})
	documents := service.NewDocumentService(pipeline, documentRepo)

	router := http.NewRouter(&http.Deps{
		Citations: citations,
		Ask:       ask,
		Documents: documents,
		Renderer:  render.NewRenderer(engine),
		Health:    handlers.NewHealthHandler(vectorStore, db, cfg.QdrantCollection),
	})

	srv := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.DocumentsDir != "" {
		go func() {
			slog.Info("Starting background ingestion", "dir", cfg.DocumentsDir)
			res, err := pipeline.IngestDir(ctx, cfg.DocumentsDir)
			if err != nil {
				slog.Error("Ingestion stopped with error", "dir", cfg.DocumentsDir, "error", err)
				return
			}
			slog.Info("Ingestion completed", "created", res.Created, "known", res.Known, "failed", res.Failed)
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", srv.Addr)
		slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
