package testutil

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// HashEmbedderDims is the vector size produced by HashEmbedder.
const HashEmbedderDims = 64

// HashEmbedder is a deterministic bag-of-words embedder. Texts sharing words land
// close together, which is enough to exercise ranking without a model.
type HashEmbedder struct {
	mu    sync.Mutex
	Calls int
	Texts int
	Err   error
}

func (e *HashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.Calls++
	e.Texts += len(texts)
	err := e.Err
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = HashVector(t)
	}
	return out, nil
}

func (e *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// HashVector counts lowercase word hashes into HashEmbedderDims buckets.
func HashVector(text string) []float32 {
	v := make([]float32, HashEmbedderDims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%HashEmbedderDims]++
	}
	return v
}
