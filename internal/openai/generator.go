package openai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Generator turns a fully rendered prompt into an answer.
type Generator struct {
	api         ChatAPI
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

func NewGenerator(api ChatAPI, cfg Config) *Generator {
	cfg = cfg.withDefaults()
	return &Generator{
		api:         api,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.ChatTimeout,
	}
}

// Complete runs one chat completion under the configured timeout.
func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyText
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.api.CreateChatCompletion(ctx, prompt, g.temperature, g.maxTokens)
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}
	return strings.TrimSpace(text), nil
}
