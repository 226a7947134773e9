package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/reportqa/internal/domain"
	"github.com/cloo-solutions/reportqa/internal/telemetry"
)

// Retriever returns the chunks most relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]domain.ScoredChunk, error)
}

// AnswerGenerator completes a rendered prompt.
type AnswerGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Stage names the step of Ask that failed.
type Stage string

const (
	StageNone       Stage = ""
	StageValidation Stage = "validation"
	StageRetrieval  Stage = "retrieval"
	StageGeneration Stage = "generation"
)

// Answer is the outcome of one question. Ask never returns an error; failures are
// reported through Fallback, Stage and Err.
type Answer struct {
	Text              string
	Sources           []domain.ScoredChunk
	Fallback          bool
	Stage             Stage
	Err               error
	RetrievalLatency  time.Duration
	GenerationLatency time.Duration
}

// QASession binds a retriever to a generator.
type QASession struct {
	retriever Retriever
	generator AnswerGenerator
}

// BuildQA creates a QASession.
func BuildQA(retriever Retriever, generator AnswerGenerator) *QASession {
	return &QASession{retriever: retriever, generator: generator}
}

// Ask retrieves context for question and generates an answer from it.
func (s *QASession) Ask(ctx context.Context, question string) Answer {
	var attrs telemetry.SpanAttributes
	if scoped, ok := s.retriever.(interface{ Filter() domain.Filter }); ok {
		attrs.Filter = scoped.Filter().String()
	}
	ctx, span := telemetry.StartAsk(ctx, attrs)
	defer span.End()

	if strings.TrimSpace(question) == "" {
		return fallback(StageValidation, domain.ErrEmptyQuestion)
	}

	start := time.Now()
	sources, err := s.retriever.Retrieve(ctx, question)
	retrievalLatency := time.Since(start)
	span.SetData("retrieval_latency", retrievalLatency)
	if err != nil {
		if !errors.Is(err, domain.ErrIndexEmpty) {
			log.Printf("qa: retrieval failed: %v", err)
			span.SetError(err)
		}
		a := fallback(StageRetrieval, err)
		a.RetrievalLatency = retrievalLatency
		return a
	}

	prompt := RenderPrompt(JoinContext(sources), question)

	start = time.Now()
	text, err := s.generator.Complete(ctx, prompt)
	generationLatency := time.Since(start)
	span.SetData("generation_latency", generationLatency)
	if err != nil {
		log.Printf("qa: generation failed: %v", err)
		span.SetError(err)
		a := fallback(StageGeneration, fmt.Errorf("failed to generate answer: %w", err))
		a.Sources = sources
		a.RetrievalLatency = retrievalLatency
		a.GenerationLatency = generationLatency
		return a
	}

	return Answer{
		Text:              text,
		Sources:           sources,
		RetrievalLatency:  retrievalLatency,
		GenerationLatency: generationLatency,
	}
}

func fallback(stage Stage, err error) Answer {
	return Answer{Text: FallbackAnswer, Fallback: true, Stage: stage, Err: err}
}
