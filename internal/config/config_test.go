package config

import (
	"testing"
	"time"

	"github.com/cloo-solutions/reportqa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WithEnvVars(t *testing.T) {
	t.Setenv("REPORTQA_PORT", "9090")
	t.Setenv("REPORTQA_DEBUG", "true")
	t.Setenv("REPORTQA_DB_PATH", "/tmp/store")
	t.Setenv("REPORTQA_COLLECTION_NAME", "reports")
	t.Setenv("REPORTQA_AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("REPORTQA_AZURE_OPENAI_API_KEY", "key")
	t.Setenv("REPORTQA_AZURE_EMBEDDING_DEPLOYMENT", "embed")
	t.Setenv("REPORTQA_AZURE_CHAT_DEPLOYMENT", "chat")
	t.Setenv("REPORTQA_CHAT_TIMEOUT", "5s")
	t.Setenv("REPORTQA_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("REPORTQA_S3_ACCESS_KEY_ID", "key")
	t.Setenv("REPORTQA_S3_SECRET_ACCESS_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, domain.CollectionRef{Path: "/tmp/store", Name: "reports"}, cfg.Collection())
	assert.Equal(t, 5*time.Second, cfg.ChatTimeout)
	assert.True(t, cfg.HasAzure())
	assert.True(t, cfg.HasS3())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, domain.DefaultStorePath, cfg.DBPath)
	assert.Equal(t, domain.DefaultCollectionName, cfg.CollectionName)
	assert.Equal(t, 16, cfg.EmbedBatchSize)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 3, cfg.EvalTopK)
	assert.Equal(t, 1000, cfg.MaxTokens)
	assert.Equal(t, float32(0), cfg.Temperature)
	assert.Equal(t, 95.0, cfg.BreakpointPercentile)
	assert.Equal(t, 1000, cfg.FallbackMaxChars)
	assert.Equal(t, "reportqa-uploads", cfg.S3Bucket)
	assert.False(t, cfg.UsePostgres())
}

func TestLoad_PostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("REPORTQA_STORE_BACKEND", "postgres")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_UnknownBackend(t *testing.T) {
	t.Setenv("REPORTQA_STORE_BACKEND", "chroma")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestHasS3(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		expected bool
	}{
		{"AllSet", Config{S3Endpoint: "http://s3", S3AccessKey: "k", S3SecretKey: "s"}, true},
		{"MissingEndpoint", Config{S3AccessKey: "k", S3SecretKey: "s"}, false},
		{"MissingSecret", Config{S3Endpoint: "http://s3", S3AccessKey: "k"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cfg.HasS3())
		})
	}
}
