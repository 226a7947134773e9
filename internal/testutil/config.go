package testutil

import (
	"path/filepath"
	"testing"

	"github.com/cloo-solutions/reportqa/internal/config"
)

// Config returns a sqlite-backed configuration rooted in a temp dir, with the same
// defaults the environment would supply.
func Config(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:                 "8080",
		StoreBackend:         "sqlite",
		DBPath:               filepath.Join(t.TempDir(), "vector_db_store"),
		CollectionName:       "annual_reports_collection",
		EmbedBatchSize:       16,
		EmbedConcurrency:     4,
		EmbedRatePerSecond:   10,
		MaxTokens:            1000,
		TopK:                 5,
		EvalTopK:             3,
		BreakpointPercentile: 95,
		FallbackMaxChars:     1000,
		S3Bucket:             "reportqa-uploads",
		S3Region:             "us-east-1",
		Environment:          "test",
	}
}
