package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corpusworks/corpusd/internal/api/handlers"
	"github.com/corpusworks/corpusd/internal/config"
	"github.com/corpusworks/corpusd/internal/jobs"
	"github.com/corpusworks/corpusd/internal/openai"
	"github.com/corpusworks/corpusd/internal/server"
	"github.com/corpusworks/corpusd/internal/service"
	"github.com/corpusworks/corpusd/internal/storage"
	"github.com/corpusworks/corpusd/internal/telemetry"
	"github.com/corpusworks/corpusd/internal/vectorstore"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the corpusd API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if cfg.UsesPostgres() && !noMigrate {
		if err := vectorstore.RunMigrations(cfg.DatabaseURL, ""); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	store, err := vectorstore.Open(ctx, vectorstore.Options{
		DatabaseURL: cfg.DatabaseURL,
		Path:        cfg.VectorDBPath,
		Dimensions:  cfg.EmbeddingDimensions,
	})
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	defer store.Close()

	if cfg.UsesPostgres() {
		log.Println("vector store: pgvector backend")
	} else {
		log.Printf("vector store: embedded backend at %s", cfg.VectorDBPath)
	}

	var archive handlers.DocumentArchive
	if cfg.HasS3() {
		s3Archive, err := storage.NewArchive(ctx, storage.ArchiveConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create document archive: %w", err)
		}
		if err := s3Archive.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		archive = s3Archive
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("CORPUSD_OPENAI_API_KEY is required")
	}
	embedder := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})

	chunker, err := service.NewChunker(service.ChunkConfig{
		Size:    cfg.ChunkSize,
		Overlap: cfg.ChunkOverlap,
	})
	if err != nil {
		return err
	}

	ingestSvc := service.NewIngestService(chunker, embedder, store, cfg.EmbedBatchSize)
	retrievalSvc := service.NewRetrievalService(embedder, store, service.RetrievalConfig{
		TopK:           cfg.TopK,
		DocumentQATopK: cfg.DocumentQATopK,
		MinQueryLength: cfg.MinQueryLength,
	})

	var gcWorker *jobs.Worker
	if badgerStore, ok := store.(*vectorstore.BadgerStore); ok {
		gcWorker = jobs.NewWorker(jobs.NewGCProcessor(badgerStore), cfg.GCInterval)
		go gcWorker.Start(ctx)
		log.Println("value-log GC worker started")
	}

	routerCfg := server.RouterConfig{
		APIKey:          cfg.APIKey,
		DocumentHandler: handlers.NewDocumentHandler(ingestSvc, archive),
		RetrieveHandler: handlers.NewRetrieveHandler(retrievalSvc),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if gcWorker != nil {
		gcWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}
