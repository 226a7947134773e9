package service

import (
	"context"
	"errors"
	"log"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/cloo-solutions/reportqa/internal/domain"
	"github.com/cloo-solutions/reportqa/internal/vectorstore"
)

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// ChunkConfig controls semantic chunking.
type ChunkConfig struct {
	// BreakpointPercentile is the distance percentile above which a new chunk starts.
	BreakpointPercentile float64
	// BufferSize is how many neighbouring sentences are embedded with each sentence.
	BufferSize int
	// FallbackMaxChars bounds, in characters, documents kept whole when splitting fails.
	FallbackMaxChars int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		BreakpointPercentile: 95,
		BufferSize:           1,
		FallbackMaxChars:     1000,
	}
}

var errNoChunks = errors.New("splitting produced no chunks")

var sentenceBoundary = regexp.MustCompile(`([.?!])\s+`)

// SemanticChunker splits documents where the embedding distance between adjacent
// sentence windows jumps above a percentile threshold.
type SemanticChunker struct {
	embedder vectorstore.Embedder
	cfg      ChunkConfig
	uuidGen  UUIDGenerator
}

func NewSemanticChunker(embedder vectorstore.Embedder, cfg ChunkConfig) *SemanticChunker {
	def := DefaultChunkConfig()
	if cfg.BreakpointPercentile <= 0 || cfg.BreakpointPercentile > 100 {
		cfg.BreakpointPercentile = def.BreakpointPercentile
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.FallbackMaxChars <= 0 {
		cfg.FallbackMaxChars = def.FallbackMaxChars
	}
	return &SemanticChunker{embedder: embedder, cfg: cfg, uuidGen: &DefaultUUIDGenerator{}}
}

// NewSemanticChunkerWithUUID creates a chunker with a custom id generator (for testing)
func NewSemanticChunkerWithUUID(embedder vectorstore.Embedder, cfg ChunkConfig, uuidGen UUIDGenerator) *SemanticChunker {
	c := NewSemanticChunker(embedder, cfg)
	c.uuidGen = uuidGen
	return c
}

// Split chunks every document independently. A document whose split fails is kept
// whole when short enough and skipped otherwise; the error is returned only when no
// document produced a chunk.
func (c *SemanticChunker) Split(ctx context.Context, docs []domain.Document) ([]domain.Chunk, error) {
	if len(docs) == 0 {
		return nil, domain.ErrEmptyInput
	}

	var chunks []domain.Chunk
	for i, doc := range docs {
		texts, err := c.splitText(ctx, doc.Content)
		if err != nil {
			if utf8.RuneCountInString(doc.Content) >= c.cfg.FallbackMaxChars || strings.TrimSpace(doc.Content) == "" {
				log.Printf("chunker: skipping document %d (%s): %v", i, doc.Metadata.Source(), err)
				continue
			}
			log.Printf("chunker: keeping document %d (%s) whole after split failure: %v", i, doc.Metadata.Source(), err)
			texts = []string{doc.Content}
		}

		for _, text := range texts {
			chunks = append(chunks, domain.Chunk{
				ID:       c.uuidGen.NewString(),
				Content:  text,
				Metadata: doc.Metadata.Clone(),
			})
		}
	}

	if len(chunks) == 0 {
		return nil, domain.ErrChunkingFailed
	}
	return chunks, nil
}

func (c *SemanticChunker) splitText(ctx context.Context, text string) ([]string, error) {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil, errNoChunks
	}
	if len(sentences) == 1 {
		return sentences, nil
	}

	vectors, err := c.embedder.EmbedDocuments(ctx, combineSentences(sentences, c.cfg.BufferSize))
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(sentences) {
		return nil, errors.New("embedding count does not match sentence count")
	}

	distances := make([]float64, len(vectors)-1)
	for i := range distances {
		distances[i] = 1 - float64(vectorstore.CosineSimilarity(vectors[i], vectors[i+1]))
	}
	threshold := Percentile(distances, c.cfg.BreakpointPercentile)

	var (
		out   []string
		start int
	)
	for i, d := range distances {
		if d > threshold {
			out = append(out, strings.Join(sentences[start:i+1], " "))
			start = i + 1
		}
	}
	if start < len(sentences) {
		out = append(out, strings.Join(sentences[start:], " "))
	}

	if len(out) == 0 {
		return nil, errNoChunks
	}
	return out, nil
}

// SplitSentences breaks text after '.', '?' or '!' followed by whitespace. The
// punctuation stays with its sentence; empty pieces are dropped.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	start := 0
	for _, loc := range sentenceBoundary.FindAllStringSubmatchIndex(text, -1) {
		// loc[3] is the end of the punctuation group.
		if s := strings.TrimSpace(text[start:loc[3]]); s != "" {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func combineSentences(sentences []string, buffer int) []string {
	combined := make([]string, len(sentences))
	for i := range sentences {
		lo := max(i-buffer, 0)
		hi := min(i+buffer+1, len(sentences))
		combined[i] = strings.Join(sentences[lo:hi], " ")
	}
	return combined
}

// Percentile returns the p-th percentile of values using linear interpolation between
// closest ranks. It returns 0 for an empty slice.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (rank-float64(lo))*(sorted[hi]-sorted[lo])
}
