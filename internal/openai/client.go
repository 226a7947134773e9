package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultAPIVersion    = "2024-02-01"
	DefaultBatchSize     = 16
	DefaultConcurrency   = 4
	DefaultRatePerSecond = 10
	DefaultMaxTokens     = 1000
	DefaultEmbedTimeout  = 60 * time.Second
	DefaultChatTimeout   = 120 * time.Second
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrNoCredentials is returned when the Azure endpoint or key is missing
	ErrNoCredentials = errors.New("azure openai endpoint and api key are required")
	// ErrNoDeployment is returned when a deployment name is missing
	ErrNoDeployment = errors.New("azure openai deployment name is required")
	// ErrCountMismatch is returned when the provider returns a different number of vectors than inputs
	ErrCountMismatch = errors.New("embedding count does not match input count")
	// ErrEmptyCompletion is returned when the chat response has no choices
	ErrEmptyCompletion = errors.New("no completion choices returned")
)

// EmbeddingAPI is the provider call used by the Embedder.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatAPI is the provider call used by the Generator.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error)
}

// Config holds Azure OpenAI connection and call settings.
type Config struct {
	Endpoint            string
	APIKey              string
	APIVersion          string
	EmbeddingDeployment string
	ChatDeployment      string

	BatchSize     int
	Concurrency   int
	RatePerSecond float64
	EmbedTimeout  time.Duration
	ChatTimeout   time.Duration
	Temperature   float32
	MaxTokens     int
}

func (c Config) withDefaults() Config {
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = DefaultRatePerSecond
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = DefaultEmbedTimeout
	}
	if c.ChatTimeout <= 0 {
		c.ChatTimeout = DefaultChatTimeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	return c
}

// AzureAdapter talks to Azure OpenAI deployments through go-openai.
type AzureAdapter struct {
	client              *openai.Client
	embeddingDeployment string
	chatDeployment      string
}

func NewAzureAdapter(cfg Config) (*AzureAdapter, error) {
	if cfg.Endpoint == "" || cfg.APIKey == "" {
		return nil, ErrNoCredentials
	}
	if cfg.EmbeddingDeployment == "" || cfg.ChatDeployment == "" {
		return nil, ErrNoDeployment
	}
	cfg = cfg.withDefaults()

	clientCfg := openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	clientCfg.APIVersion = cfg.APIVersion
	// Requests carry the deployment name as the model; route it through unchanged.
	clientCfg.AzureModelMapperFunc = func(model string) string { return model }

	return &AzureAdapter{
		client:              openai.NewClientWithConfig(clientCfg),
		embeddingDeployment: cfg.EmbeddingDeployment,
		chatDeployment:      cfg.ChatDeployment,
	}, nil
}

// CreateEmbeddings embeds texts in one request, returning vectors in input order.
func (a *AzureAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(a.embeddingDeployment),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(resp.Data), len(texts))
	}

	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// CreateChatCompletion sends prompt as a single user message.
func (a *AzureAdapter) CreateChatCompletion(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	// go-openai drops a zero temperature via omitempty, which the API reads as 1.
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.chatDeployment,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// New builds the embedder and generator sharing one Azure adapter.
func New(cfg Config) (*Embedder, *Generator, error) {
	adapter, err := NewAzureAdapter(cfg)
	if err != nil {
		return nil, nil, err
	}
	return NewEmbedder(adapter, cfg), NewGenerator(adapter, cfg), nil
}
