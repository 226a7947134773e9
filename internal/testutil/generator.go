package testutil

import (
	"context"
	"sync"
)

// StubGenerator returns a fixed reply and records every prompt it receives.
type StubGenerator struct {
	mu      sync.Mutex
	Reply   string
	Err     error
	Prompts []string
}

func (g *StubGenerator) Complete(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Prompts = append(g.Prompts, prompt)
	if g.Err != nil {
		return "", g.Err
	}
	return g.Reply, nil
}

// Calls returns how many prompts were completed or attempted.
func (g *StubGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Prompts)
}
