package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avelar/docindex/internal/api"
	"github.com/avelar/docindex/internal/billing"
	"github.com/avelar/docindex/internal/config"
	"github.com/avelar/docindex/internal/logger"
	"github.com/avelar/docindex/internal/maintenance"
	"github.com/avelar/docindex/internal/provider"
	"github.com/avelar/docindex/internal/registry"
	"github.com/avelar/docindex/internal/repository"
	"github.com/avelar/docindex/internal/service"
	"github.com/avelar/docindex/internal/storage"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Environment: cfg.Log.Environment,
		LogFile:     cfg.Log.File,
		LogFileOnly: cfg.Log.FileOnly,
		MaxSize:     cfg.Log.MaxSize,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAge:      cfg.Log.MaxAge,
		Compress:    cfg.Log.Compress,
	})
	defer logger.Sync()
	logger.SetDefaultLogger(appLog)

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to initialize database")
	}

	jobRepo := repository.NewJobRepository(db)
	eventRepo := repository.NewJobEventRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	embeddingRepo := repository.NewEmbeddingRepository(db)

	qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Embedding.Dimensions,
	})
	if err != nil {
		appLog.WithError(err).Fatal("Failed to initialize Qdrant repository")
	}
	defer qdrantRepo.Close()

	ctx := context.Background()
	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		appLog.WithError(err).Fatal("Failed to ensure Qdrant collection")
	}

	s3Store, err := storage.NewStorage(&storage.S3Config{
		Type:      storage.StorageType(cfg.Storage.Type),
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		appLog.WithError(err).Fatal("Failed to initialize storage")
	}
	if err := s3Store.EnsureBucket(ctx); err != nil {
		appLog.WithError(err).Fatal("Failed to ensure storage bucket")
	}
	blobStore := storage.NewS3BlobStore(s3Store)

	ocrClient := provider.NewOCRClient(&cfg.OCR)
	embedClient := provider.NewEmbeddingClient(&cfg.Embedding)
	ledger := billing.NewHTTPLedger(&cfg.Billing)
	pricing := billing.NewDefaultPricing(&cfg.Billing)
	registryClient := registry.NewHTTPClient(&cfg.Registry)

	chunker := service.NewChunker(cfg.Pipeline.MaxTokensPerChunk, cfg.Pipeline.ChunkOverlap)
	orchestrator := service.NewOrchestrator(service.OrchestratorDeps{
		Jobs:        jobRepo,
		Events:      eventRepo,
		Projects:    registryClient,
		Ledger:      ledger,
		Pricing:     pricing,
		Store:       blobStore,
		Convert:     service.NewConvertStage(blobStore, cfg.Storage.CacheBucket),
		OCR:         service.NewOCRStage(ocrClient, blobStore, cfg.Storage.CacheBucket, provider.OCRStrategy(cfg.OCR.Strategy)),
		Chunk:       service.NewChunkStage(chunkRepo, embeddingRepo, blobStore, chunker),
		Embed:       service.NewEmbedStage(embedClient, chunkRepo, embeddingRepo),
		Integrate:   service.NewIntegrateStage(chunkRepo, embeddingRepo, qdrantRepo),
		ChunkTokens: cfg.Pipeline.MaxTokensPerChunk,
	})

	indexing := service.NewIndexingService(orchestrator, jobRepo, eventRepo, appLog, cfg.Pipeline.MaxConcurrentJobs)

	// Background maintenance, scoped to this process
	tasks := maintenance.NewRegistry(appLog)
	if cfg.Maintenance.Enabled {
		cleanup := maintenance.NewCacheCleanup(jobRepo, blobStore, cfg.Storage.CacheBucket, cfg.Maintenance.CacheTTL, cfg.Maintenance.CleanBatch)
		tasks.Register("cache-cleanup", cfg.Maintenance.CleanInterval, cleanup.Run)
	}
	tasks.Start()
	defer tasks.Stop()

	router := api.SetupRouter(indexing, appLog, &cfg.Server)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLog.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Fatal("Server forced to shutdown")
	}

	appLog.Info("Server exited")
}
