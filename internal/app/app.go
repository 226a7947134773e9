// Package app wires configuration into the running components shared by the
// reportqa and reportqad binaries.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloo-solutions/reportqa/internal/config"
	"github.com/cloo-solutions/reportqa/internal/database"
	"github.com/cloo-solutions/reportqa/internal/loader"
	"github.com/cloo-solutions/reportqa/internal/openai"
	"github.com/cloo-solutions/reportqa/internal/repository"
	"github.com/cloo-solutions/reportqa/internal/service"
	"github.com/cloo-solutions/reportqa/internal/session"
	"github.com/cloo-solutions/reportqa/internal/storage"
	"github.com/cloo-solutions/reportqa/internal/telemetry"
	"github.com/cloo-solutions/reportqa/internal/vectorstore"
	"github.com/cloo-solutions/reportqa/internal/vectorstore/sqlite"
)

// Providers are the model-backed dependencies.
type Providers struct {
	Embedder  vectorstore.Embedder
	Generator service.AnswerGenerator
}

// App holds the wired components for one collection.
type App struct {
	Config     *config.Config
	Store      *vectorstore.Manager
	Ingester   *service.IngestService
	Controller *session.Controller
	Generator  service.AnswerGenerator

	closers []func()
}

// New wires the Azure OpenAI providers and the configured store backend.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if !cfg.HasAzure() {
		return nil, fmt.Errorf("azure openai is not configured: set %s_AZURE_OPENAI_ENDPOINT, %s_AZURE_OPENAI_API_KEY, %s_AZURE_EMBEDDING_DEPLOYMENT and %s_AZURE_CHAT_DEPLOYMENT",
			config.EnvPrefix, config.EnvPrefix, config.EnvPrefix, config.EnvPrefix)
	}

	embedder, generator, err := openai.New(openai.Config{
		Endpoint:            cfg.AzureEndpoint,
		APIKey:              cfg.AzureAPIKey,
		APIVersion:          cfg.AzureAPIVersion,
		EmbeddingDeployment: cfg.EmbeddingDeployment,
		ChatDeployment:      cfg.ChatDeployment,
		BatchSize:           cfg.EmbedBatchSize,
		Concurrency:         cfg.EmbedConcurrency,
		RatePerSecond:       cfg.EmbedRatePerSecond,
		EmbedTimeout:        cfg.EmbedTimeout,
		ChatTimeout:         cfg.ChatTimeout,
		Temperature:         cfg.Temperature,
		MaxTokens:           cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create azure openai client: %w", err)
	}
	log.Printf("azure openai ready (embeddings: %s, chat: %s)", cfg.EmbeddingDeployment, cfg.ChatDeployment)

	return NewWithProviders(ctx, cfg, Providers{Embedder: embedder, Generator: generator})
}

// NewWithProviders wires everything except the model providers.
func NewWithProviders(ctx context.Context, cfg *config.Config, p Providers) (*App, error) {
	a := &App{Config: cfg, Generator: p.Generator}

	backend, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}
	a.Store = vectorstore.NewManager(backend, p.Embedder)

	var archiver service.Archiver
	if cfg.HasS3() {
		s3, err := storage.NewS3Archiver(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create S3 archiver: %w", err)
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		archiver = s3
	}

	ld := loader.New(loader.NewRegistry(loader.Tools{
		PDFToText:   cfg.PDFToTextPath,
		PDFToPPM:    cfg.PDFToPPMPath,
		Tesseract:   cfg.TesseractPath,
		OCRLanguage: cfg.OCRLanguage,
	}))
	chunkCfg := service.DefaultChunkConfig()
	chunkCfg.BreakpointPercentile = cfg.BreakpointPercentile
	chunkCfg.FallbackMaxChars = cfg.FallbackMaxChars
	chunker := service.NewSemanticChunker(p.Embedder, chunkCfg)

	ref := cfg.Collection()
	a.Ingester = service.NewIngestService(ld, chunker, a.Store, archiver, ref)
	a.Controller = session.NewController(a.Store, a.Ingester, p.Generator, ref, cfg.TopK)
	return a, nil
}

func (a *App) openBackend(ctx context.Context) (vectorstore.Backend, error) {
	if !a.Config.UsePostgres() {
		store := sqlite.New()
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				log.Printf("failed to close sqlite store: %v", err)
			}
		})
		log.Printf("using sqlite vector store at %s", a.Config.DBPath)
		return store, nil
	}

	pool, err := database.NewPool(ctx, database.Config{
		URL:            a.Config.DatabaseURL,
		MaxConns:       a.Config.DBMaxConns,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	log.Println("connected to database")
	return repository.NewVectorStoreRepository(pool), nil
}

// Evaluator opens the collection and returns an evaluator retrieving k chunks per
// question. k <= 0 uses the configured evaluation k.
func (a *App) Evaluator(ctx context.Context, k int) (*service.Evaluator, error) {
	if k <= 0 {
		k = a.Config.EvalTopK
	}
	idx, err := a.Store.Load(ctx, a.Config.Collection())
	if err != nil {
		return nil, err
	}
	return service.NewEvaluator(idx, a.Generator, k), nil
}

// Close releases backend connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// InitTelemetry starts Sentry when a DSN is configured. The returned function flushes
// pending events and is always safe to call.
func InitTelemetry(cfg *config.Config) func() {
	if !cfg.HasSentry() {
		return func() {}
	}

	// Sample everything in development, 10% elsewhere.
	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return shutdown
}
