package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/reportqa/internal/domain"
)

// Index is an opened collection plus the embedder used to query it.
type Index struct {
	ref      domain.CollectionRef
	coll     Collection
	embedder Embedder
}

// NewIndex wraps an opened collection.
func NewIndex(ref domain.CollectionRef, coll Collection, embedder Embedder) *Index {
	return &Index{ref: ref, coll: coll, embedder: embedder}
}

func (i *Index) Ref() domain.CollectionRef { return i.ref }

// Count returns the number of stored chunks.
func (i *Index) Count(ctx context.Context) (int, error) {
	n, err := i.coll.Count(ctx)
	if err != nil {
		return 0, domain.Wrap(domain.ErrStoreFailed, err)
	}
	return n, nil
}

// SimilaritySearch embeds query and returns at most k matching chunks by
// non-increasing similarity.
func (i *Index) SimilaritySearch(ctx context.Context, query string, k int, filter domain.Filter) ([]domain.ScoredChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuestion
	}
	if k <= 0 {
		return nil, nil
	}

	vector, err := i.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.Wrap(domain.ErrProviderFailed, err)
	}

	hits, err := i.coll.Search(ctx, vector, k, filter)
	if err != nil {
		return nil, domain.Wrap(domain.ErrStoreFailed, err)
	}
	return hits, nil
}

// MetadataValues returns distinct values stored under key.
func (i *Index) MetadataValues(ctx context.Context, key string) ([]string, error) {
	values, err := i.coll.Values(ctx, key)
	if err != nil {
		return nil, domain.Wrap(domain.ErrStoreFailed, err)
	}
	return values, nil
}

// Retriever binds the index to a filter and result count.
func (i *Index) Retriever(filter domain.Filter, k int) *Retriever {
	return &Retriever{index: i, filter: filter, k: k}
}

// Retriever is a filter-scoped, read-only view of an Index.
type Retriever struct {
	index  *Index
	filter domain.Filter
	k      int
}

func (r *Retriever) Filter() domain.Filter { return r.filter }
func (r *Retriever) K() int                { return r.k }

// Retrieve returns the top-k chunks for question. An empty collection yields
// domain.ErrIndexEmpty.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]domain.ScoredChunk, error) {
	n, err := r.index.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, domain.ErrIndexEmpty
	}

	hits, err := r.index.SimilaritySearch(ctx, question, r.k, r.filter)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	return hits, nil
}
