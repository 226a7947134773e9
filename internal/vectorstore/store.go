// Package vectorstore persists chunks with their embeddings per (path, collection)
// and answers filtered similarity queries over them.
package vectorstore

import (
	"context"

	"github.com/cloo-solutions/reportqa/internal/domain"
)

// Record is a chunk and its embedding as written to a Backend.
type Record struct {
	Chunk     domain.Chunk
	Embedding []float32
}

// Backend is durable storage for collections.
type Backend interface {
	// HasData reports whether anything is stored at path.
	HasData(ctx context.Context, path string) (bool, error)
	// Add creates the collection if needed and writes records in one transaction.
	Add(ctx context.Context, ref domain.CollectionRef, records []Record) error
	// Open returns domain.ErrNoData when nothing is stored at ref.Path and
	// domain.ErrCollectionNotFound when the collection does not exist.
	Open(ctx context.Context, ref domain.CollectionRef) (Collection, error)
	// DeleteCollection removes one collection. Missing collections are not an error.
	DeleteCollection(ctx context.Context, ref domain.CollectionRef) error
	// DeleteAll removes everything stored at path.
	DeleteAll(ctx context.Context, path string) error
}

// Collection is a read view over one stored collection.
type Collection interface {
	Count(ctx context.Context) (int, error)
	// Search returns at most k chunks matching filter, by non-increasing score.
	Search(ctx context.Context, vector []float32, k int, filter domain.Filter) ([]domain.ScoredChunk, error)
	// Values returns the distinct values of a metadata key.
	Values(ctx context.Context, key string) ([]string, error)
}

// Embedder maps text to vectors.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
