package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arclight-ai/quarry/internal/api/handlers"
	"github.com/arclight-ai/quarry/internal/config"
	"github.com/arclight-ai/quarry/internal/database"
	"github.com/arclight-ai/quarry/internal/domain"
	"github.com/arclight-ai/quarry/internal/jobs"
	"github.com/arclight-ai/quarry/internal/openai"
	"github.com/arclight-ai/quarry/internal/repository"
	"github.com/arclight-ai/quarry/internal/server"
	"github.com/arclight-ai/quarry/internal/service"
	"github.com/arclight-ai/quarry/internal/storage"
	"github.com/arclight-ai/quarry/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the quarry API server and the background indexing worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not start the background indexing worker")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
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

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// A dimension mismatch would otherwise surface only when the first
	// chunk insert fails, long after startup.
	schemaDims, err := repository.EmbeddingColumnDimensions(ctx, pool)
	if err != nil {
		return fmt.Errorf("failed to inspect chunks.embedding column: %w", err)
	}
	if schemaDims > 0 && schemaDims != cfg.EmbeddingDimensions {
		return fmt.Errorf("QUARRY_EMBEDDING_DIMENSIONS=%d does not match the chunks.embedding column vector(%d); migrate the column or correct the setting", cfg.EmbeddingDimensions, schemaDims)
	}

	docRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	searchLogRepo := repository.NewSearchLogRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(apiKeyRepo, uuidGen)

	if cfg.InitOwnerID != "" && cfg.InitAPIKey != "" {
		if err := bootstrapAPIKey(ctx, cfg, authSvc); err != nil {
			return fmt.Errorf("failed to bootstrap API key: %w", err)
		}
	}

	if !cfg.HasS3() {
		return fmt.Errorf("S3 storage is required: set QUARRY_S3_ENDPOINT, QUARRY_S3_ACCESS_KEY_ID, QUARRY_S3_SECRET_ACCESS_KEY")
	}
	textStore, err := storage.NewRawTextStore(ctx, storage.RawTextStoreConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create text store: %w", err)
	}
	if err := textStore.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)

	if !cfg.HasOpenAI() {
		return fmt.Errorf("embedding provider is required: set QUARRY_OPENAI_API_KEY")
	}
	embeddingClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})

	processorCfg := service.DefaultProcessorConfig()
	processorCfg.BatchSize = cfg.ProcessBatchSize
	processorCfg.BatchPause = cfg.ProcessBatchPause
	processor := service.NewDocumentProcessorWithConfig(embeddingClient, docRepo, txRunner, processorCfg)

	documentSvc := service.NewDocumentService(docRepo, textStore)
	retrievalSvc := service.NewRetrievalService(embeddingClient, docRepo, chunkRepo, searchLogRepo)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	var worker *jobs.Worker
	noWorker, _ := cmd.Flags().GetBool("no-worker")
	if !noWorker {
		documentWorker := jobs.NewDocumentWorker(docRepo, textStore, processor)
		worker = jobs.NewWorker(documentWorker, cfg.WorkerInterval)
		go worker.Start(workerCtx)
		log.Println("document worker started")
	}

	routerCfg := server.RouterConfig{
		AuthValidator:   authSvc,
		DocumentHandler: handlers.NewDocumentHandler(documentSvc),
		SearchHandler:   handlers.NewSearchHandler(retrievalSvc),
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

	// Stop the worker first so in-flight indexing resolves before the pool closes.
	cancelWorker()
	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func bootstrapAPIKey(ctx context.Context, cfg *config.Config, authSvc *service.AuthService) error {
	if _, err := authSvc.ValidateAPIKey(ctx, cfg.InitAPIKey); err == nil {
		log.Println("bootstrap: API key already registered")
		return nil
	}

	if err := authSvc.ImportAPIKey(ctx, cfg.InitOwnerID, "bootstrap", cfg.InitAPIKey); err != nil {
		if derr, ok := err.(*domain.DomainError); ok && derr.Code == domain.ErrCodeValidation {
			return fmt.Errorf("invalid QUARRY_INIT_API_KEY: %w", err)
		}
		return err
	}

	log.Printf("bootstrap: registered API key for owner %s", cfg.InitOwnerID)
	return nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else {
		log.Printf("migrations: database at version %d", version)
	}

	return nil
}
