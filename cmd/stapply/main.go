// stapply search service
//
// Natural-language job search over a shared corpus:
//   - POST /api/searches                — submit a query, get an id back
//   - GET  /api/searches/:id           — poll the current snapshot
//   - GET  /api/searches/:id/events    — live snapshot stream (SSE)
//   - GET  /api/searches               — search history
//   - DELETE /api/searches/:id         — purge one search
//
// Terminal searches are mirrored to Redis for out-of-process consumers.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kalil0321/stapply/internal/ai"
	"github.com/kalil0321/stapply/internal/config"
	"github.com/kalil0321/stapply/internal/db"
	"github.com/kalil0321/stapply/internal/events"
	"github.com/kalil0321/stapply/internal/httpapi"
	"github.com/kalil0321/stapply/internal/janitor"
	"github.com/kalil0321/stapply/internal/search"
	"github.com/kalil0321/stapply/internal/store"
)

const version = "1.0.0"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "stapply")
	slog.SetDefault(logger)

	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[stapply] Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[stapply] PostgreSQL: %v", err)
	}
	defer pool.Close()
	logger.Info("postgres connected")

	// ── Redis (optional) ─────────────────────────────────────────────────────
	var mirror *events.Mirror
	if cfg.RedisURL != "" {
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("[stapply] Redis: %v", err)
		}
		defer rdb.Close()
		mirror = events.NewMirror(rdb)
		logger.Info("redis connected")
	} else {
		logger.Info("redis not configured, event mirror disabled")
	}

	// ── Wiring ───────────────────────────────────────────────────────────────
	st := store.New(pool)
	broker := events.NewBroker()

	oracle, err := ai.NewClient(ai.ClientConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.ChatModel,
	})
	if err != nil {
		log.Fatalf("[stapply] Inference client: %v", err)
	}
	embedder, err := ai.NewEmbeddingService(ai.EmbeddingConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.EmbeddingModel,
	})
	if err != nil {
		log.Fatalf("[stapply] Embedding client: %v", err)
	}

	pipeline := search.New(st, oracle, embedder, broker, mirror, logger, search.Options{
		Quota:          cfg.ResultsLimit,
		OuterBatch:     cfg.OuterBatchSize,
		InnerBatch:     cfg.LLMBatchSize,
		LLMConcurrency: cfg.LLMConcurrency,
	})

	// ── Janitor ──────────────────────────────────────────────────────────────
	jan := janitor.New(st, logger,
		time.Duration(cfg.JanitorIntervalMinutes)*time.Minute,
		time.Duration(cfg.StaleSearchMinutes)*time.Minute,
		time.Duration(cfg.SearchRetentionDays)*24*time.Hour,
	)
	if err := jan.Start(); err != nil {
		log.Fatalf("[stapply] Janitor: %v", err)
	}
	defer jan.Stop()

	// ── HTTP server ──────────────────────────────────────────────────────────
	app := httpapi.NewApp("stapply v" + version)
	httpapi.NewHandler(st, broker, pipeline, logger).Register(app)

	go func() {
		logger.Info("listening", "port", cfg.Port, "version", version)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("[stapply] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown error", "err", err)
	}
	logger.Info("stopped")
}
