package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/epirag/epirag/internal/config"
	"github.com/epirag/epirag/internal/index"
	logpkg "github.com/epirag/epirag/internal/logger"
	"github.com/epirag/epirag/internal/metrics"
	"github.com/epirag/epirag/internal/repository/metadata"
	"github.com/epirag/epirag/internal/repository/vector"
	chiTransport "github.com/epirag/epirag/internal/transport/chi"
	openaiEmb "github.com/epirag/epirag/internal/transport/openai"
	"github.com/epirag/epirag/internal/usecase/ingest"
	"github.com/epirag/epirag/internal/usecase/retrieval"
	"github.com/epirag/epirag/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting epirag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("vector_addrs", cfg.Vector.Addrs),
		zap.String("metadata_path", cfg.Metadata.Path),
	)

	// Corpus metadata store (sqlite)
	meta, err := metadata.Open(cfg.Metadata.Path)
	if err != nil {
		logger.Fatal("Failed to open metadata store", zap.Error(err))
	}
	defer func() { _ = meta.Close() }()

	// Vector store (Redis)
	vectors, err := vector.NewStore(vector.Config{
		Addrs:      cfg.Vector.Addrs,
		Username:   cfg.Vector.Username,
		Password:   cfg.Vector.Password,
		DB:         cfg.Vector.DB,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		logger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer vectors.Close()

	ctx := context.Background()
	if err := vectors.WaitForReady(ctx, time.Duration(cfg.Vector.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Vector store not ready", zap.Error(err))
	}
	logger.Info("Connected to vector store")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()

	embedder := openaiEmb.NewEmbedder(openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
	})
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Warm the lexical index from the corpus so /query works before the
	// first /reindex. A missing corpus is not fatal; the index stays empty.
	engine := index.NewEngine()
	if chunks, err := meta.Chunks(ctx); err != nil {
		logger.Warn("Lexical index warm-up failed", zap.Error(err))
	} else {
		docs := make([]index.Document, len(chunks))
		for i, c := range chunks {
			docs[i] = index.Document{ID: c.ChunkID, Text: c.Text}
		}
		snapshot := engine.Rebuild(docs)
		logger.Info("Lexical index built", zap.Int("documents", snapshot.Len()))
	}

	retrievalSvc := retrieval.New(embedder, vectors, engine, meta, logger)
	ingestSvc := ingest.New(meta, embedder, vectors, engine, meta, logger,
		cfg.Ingest.Workers, cfg.Ingest.BatchSize)

	server := chiTransport.NewServer(
		retrievalSvc, ingestSvc, meta, meta,
		[]chiTransport.Pinger{meta, vectors},
		chiTransport.Limits{
			DefaultTopK: cfg.Retrieval.DefaultTopK,
			MaxTopK:     cfg.Retrieval.MaxTopK,
		},
		logger,
	)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	r.Handle("/metrics", promhttp.Handler())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
