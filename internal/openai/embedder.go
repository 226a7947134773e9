package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Embedder maps text to vectors in fixed-size batches, each call bounded by a timeout
// and paced by a shared rate limiter.
type Embedder struct {
	api         EmbeddingAPI
	batchSize   int
	concurrency int
	timeout     time.Duration
	limiter     *rate.Limiter
}

func NewEmbedder(api EmbeddingAPI, cfg Config) *Embedder {
	cfg = cfg.withDefaults()
	return &Embedder{
		api:         api,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		timeout:     cfg.EmbedTimeout,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Concurrency),
	}
}

// EmbedDocuments returns one vector per text, in input order.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("text %d: %w", i, ErrEmptyText)
		}
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		batch := texts[start:end]
		offset := start

		g.Go(func() error {
			vectors, err := e.call(gctx, batch)
			if err != nil {
				return fmt.Errorf("failed to embed batch at %d: %w", offset, err)
			}
			copy(out[offset:], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// EmbedQuery embeds a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	vectors, err := e.call(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return vectors[0], nil
}

func (e *Embedder) call(ctx context.Context, batch []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vectors, err := e.api.CreateEmbeddings(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(vectors), len(batch))
	}
	return vectors, nil
}
