package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/avelar/docindex/internal/billing"
	"github.com/avelar/docindex/internal/config"
	"github.com/avelar/docindex/internal/logger"
	"github.com/avelar/docindex/internal/provider"
	"github.com/avelar/docindex/internal/registry"
	"github.com/avelar/docindex/internal/repository"
	"github.com/avelar/docindex/internal/service"
	"github.com/avelar/docindex/internal/storage"
)

// indexer runs one indexing job synchronously from the command line.
// Useful for backfills and for reproducing a job outside the API server.
func main() {
	var (
		configPath = flag.String("config", os.Getenv("CONFIG_PATH"), "path to config file")
		projectID  = flag.String("project", "", "project ID (required)")
		fileID     = flag.String("file", "", "file ID (required)")
		mimeType   = flag.String("mime", "", "mime type override")
		needsOCR   = flag.Bool("ocr", false, "run the OCR phase")
		createdBy  = flag.String("by", "indexer-cli", "creator recorded on the job")
	)
	flag.Parse()

	if *projectID == "" || *fileID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      "text",
		Environment: cfg.Log.Environment,
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

	ctx := appLog.WithContext(context.Background())
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
	blobStore := storage.NewS3BlobStore(s3Store)

	chunker := service.NewChunker(cfg.Pipeline.MaxTokensPerChunk, cfg.Pipeline.ChunkOverlap)
	orchestrator := service.NewOrchestrator(service.OrchestratorDeps{
		Jobs:        jobRepo,
		Events:      eventRepo,
		Projects:    registry.NewHTTPClient(&cfg.Registry),
		Ledger:      billing.NewHTTPLedger(&cfg.Billing),
		Pricing:     billing.NewDefaultPricing(&cfg.Billing),
		Store:       blobStore,
		Convert:     service.NewConvertStage(blobStore, cfg.Storage.CacheBucket),
		OCR:         service.NewOCRStage(provider.NewOCRClient(&cfg.OCR), blobStore, cfg.Storage.CacheBucket, provider.OCRStrategy(cfg.OCR.Strategy)),
		Chunk:       service.NewChunkStage(chunkRepo, embeddingRepo, blobStore, chunker),
		Embed:       service.NewEmbedStage(provider.NewEmbeddingClient(&cfg.Embedding), chunkRepo, embeddingRepo),
		Integrate:   service.NewIntegrateStage(chunkRepo, embeddingRepo, qdrantRepo),
		ChunkTokens: cfg.Pipeline.MaxTokensPerChunk,
	})

	summary, err := orchestrator.RunSync(ctx, &service.CreateJobRequest{
		ProjectID: *projectID,
		FileID:    *fileID,
		CreatedBy: *createdBy,
		MimeType:  *mimeType,
		NeedsOCR:  *needsOCR,
	})
	if err != nil {
		appLog.WithError(err).Fatal("Job rejected")
	}

	fmt.Printf("job %s finished: status=%s phase=%s phases=[%s]\n",
		summary.JobID, summary.Status, summary.Phase, strings.Join(summary.PhasesCompleted, ", "))
	fmt.Printf("chunks=%d embeddings=%d ocr_pages=%d estimated=%d actual=%d\n",
		summary.TotalChunks, summary.TotalEmbeddings, summary.OCRPages, summary.EstimatedCost, summary.ActualCost)
	if summary.Error != "" {
		fmt.Printf("error: %s\n", summary.Error)
		os.Exit(1)
	}
}
