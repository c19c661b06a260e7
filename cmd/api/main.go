package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/factorymind/backend/internal/analysis"
	"github.com/factorymind/backend/internal/api"
	"github.com/factorymind/backend/internal/api/handlers"
	"github.com/factorymind/backend/internal/chunk"
	"github.com/factorymind/backend/internal/embed"
	"github.com/factorymind/backend/internal/ingest"
	"github.com/factorymind/backend/internal/llm"
	"github.com/factorymind/backend/internal/metrics"
	"github.com/factorymind/backend/internal/middleware/ratelimit"
	"github.com/factorymind/backend/internal/middleware/security"
	"github.com/factorymind/backend/internal/middleware/validation"
	"github.com/factorymind/backend/internal/rag"
	"github.com/factorymind/backend/internal/report"
	"github.com/factorymind/backend/internal/storage/sqlite"
	"github.com/factorymind/backend/internal/vector"
	"github.com/factorymind/backend/pkg/config"
	appLogger "github.com/factorymind/backend/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting FactoryMind API Server")

	metrics.Init()

	for _, dir := range []string{
		cfg.Storage.DocumentsDir,
		cfg.Storage.DataDir,
		filepath.Dir(cfg.Storage.IndexPath),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			appLogger.Fatal("Failed to create storage directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	db, err := sqlite.NewClient(cfg.Storage.DatabasePath)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	ctx := context.Background()
	index, err := vector.New(ctx, vector.Config{
		Backend:          cfg.Vector.Backend,
		IndexPath:        cfg.Storage.IndexPath,
		Dimension:        cfg.Embedding.Dimension,
		MilvusEndpoint:   cfg.Vector.Milvus.Endpoint,
		MilvusCollection: cfg.Vector.Milvus.CollectionName,
	})
	if err != nil {
		appLogger.Fatal("Failed to open vector index", zap.Error(err))
	}
	defer index.Close()

	embedder := embed.NewOpenAI(
		cfg.Embedding.APIKey,
		cfg.Embedding.BaseURL,
		cfg.Embedding.Model,
		cfg.Embedding.Dimension,
		cfg.Embedding.BatchSize,
		cfg.Embedding.TimeoutSec,
	)

	llmClient := llm.NewOpenAI(
		cfg.LLM.APIKey,
		cfg.LLM.BaseURL,
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	chunker, err := chunk.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		appLogger.Fatal("Failed to create chunker", zap.Error(err))
	}

	processor := ingest.NewProcessor(db, index, embedder, chunker, cfg.Storage.DocumentsDir)
	ragEngine := rag.NewEngine(index, embedder, llmClient, cfg.RAG.TopK, cfg.RAG.MaxContextChars)
	analyzer := analysis.NewAnalyzer(cfg.Report.MinAnomalySamples)
	reportEngine := report.NewEngine(db, llmClient, analyzer, cfg.Report.RecentLimit, cfg.Report.TrendBaseline)

	if count, err := index.Count(ctx); err == nil {
		metrics.IndexEntries.Set(float64(count))
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: strings.Split(cfg.Server.AllowedOrigins, ","),
		Development:    cfg.Server.Development,
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		MaxQuestionChars: cfg.Server.MaxQuestionChars,
		Logger:           appLogger.GetLogger(),
	}))

	api.RegisterRoutes(app, api.Handlers{
		Documents: handlers.NewDocumentHandler(processor, cfg.Storage.DocumentsDir),
		Query:     handlers.NewQueryHandler(ragEngine),
		Reports:   handlers.NewReportHandler(reportEngine, cfg.Storage.DataDir),
		Health:    handlers.NewHealthHandler(processor, reportEngine, cfg.Storage.IndexPath),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
