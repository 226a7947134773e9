package config

import (
	"fmt"
	"time"

	"github.com/cloo-solutions/reportqa/internal/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "REPORTQA"

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// Vector store
	StoreBackend   string `envconfig:"STORE_BACKEND" default:"sqlite"`
	DBPath         string `envconfig:"DB_PATH" default:"vector_db_store"`
	CollectionName string `envconfig:"COLLECTION_NAME" default:"annual_reports_collection"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	DBMaxConns     int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"file://migrations"`

	// Azure OpenAI
	AzureEndpoint       string        `envconfig:"AZURE_OPENAI_ENDPOINT"`
	AzureAPIKey         string        `envconfig:"AZURE_OPENAI_API_KEY"`
	AzureAPIVersion     string        `envconfig:"AZURE_OPENAI_API_VERSION" default:"2024-02-01"`
	EmbeddingDeployment string        `envconfig:"AZURE_EMBEDDING_DEPLOYMENT"`
	ChatDeployment      string        `envconfig:"AZURE_CHAT_DEPLOYMENT"`
	EmbedBatchSize      int           `envconfig:"EMBED_BATCH_SIZE" default:"16"`
	EmbedConcurrency    int           `envconfig:"EMBED_CONCURRENCY" default:"4"`
	EmbedRatePerSecond  float64       `envconfig:"EMBED_RATE_PER_SECOND" default:"10"`
	EmbedTimeout        time.Duration `envconfig:"EMBED_TIMEOUT" default:"60s"`
	ChatTimeout         time.Duration `envconfig:"CHAT_TIMEOUT" default:"120s"`
	Temperature         float32       `envconfig:"TEMPERATURE" default:"0"`
	MaxTokens           int           `envconfig:"MAX_TOKENS" default:"1000"`

	// Retrieval and chunking
	TopK                 int     `envconfig:"TOP_K" default:"5"`
	EvalTopK             int     `envconfig:"EVAL_TOP_K" default:"3"`
	BreakpointPercentile float64 `envconfig:"BREAKPOINT_PERCENTILE" default:"95"`
	FallbackMaxChars     int     `envconfig:"FALLBACK_MAX_CHARS" default:"1000"`

	// External extraction tools
	PDFToTextPath string `envconfig:"PDFTOTEXT_PATH" default:"pdftotext"`
	PDFToPPMPath  string `envconfig:"PDFTOPPM_PATH" default:"pdftoppm"`
	TesseractPath string `envconfig:"TESSERACT_PATH" default:"tesseract"`
	OCRLanguage   string `envconfig:"OCR_LANGUAGE" default:"eng"`

	// Optional archive of uploaded originals
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"reportqa-uploads"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values envconfig cannot express as tags.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("%s_DATABASE_URL is required for the postgres store backend", EnvPrefix)
		}
	default:
		return fmt.Errorf("unknown store backend %q (expected sqlite or postgres)", c.StoreBackend)
	}
	if c.EmbedBatchSize <= 0 {
		return fmt.Errorf("%s_EMBED_BATCH_SIZE must be positive", EnvPrefix)
	}
	if c.TopK <= 0 || c.EvalTopK <= 0 {
		return fmt.Errorf("%s_TOP_K and %s_EVAL_TOP_K must be positive", EnvPrefix, EnvPrefix)
	}
	if c.BreakpointPercentile <= 0 || c.BreakpointPercentile > 100 {
		return fmt.Errorf("%s_BREAKPOINT_PERCENTILE must be in (0, 100]", EnvPrefix)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasAzure() bool {
	return c.AzureEndpoint != "" && c.AzureAPIKey != "" &&
		c.EmbeddingDeployment != "" && c.ChatDeployment != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}

func (c *Config) UsePostgres() bool {
	return c.StoreBackend == "postgres"
}

// Collection returns the configured collection identity.
func (c *Config) Collection() domain.CollectionRef {
	return domain.NewCollectionRef(c.DBPath, c.CollectionName)
}
