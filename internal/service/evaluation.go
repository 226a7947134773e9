package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cloo-solutions/reportqa/internal/domain"
	"github.com/cloo-solutions/reportqa/internal/vectorstore"
)

// DefaultReportPath is where evaluation reports are written unless overridden.
const DefaultReportPath = "evaluation_report.json"

// Evaluation statuses.
const (
	StatusSuccess         = "Success"
	StatusRetrievalError  = "Retrieval Error"
	StatusGenerationError = "LLM Generation Error"
)

const snippetChars = 200

// EvalCase is one question with the keywords a good run should surface.
type EvalCase struct {
	ID                int      `json:"id" yaml:"id"`
	Question          string   `json:"question" yaml:"question"`
	Company           string   `json:"company,omitempty" yaml:"company,omitempty"`
	Year              string   `json:"year,omitempty" yaml:"year,omitempty"`
	ExpectedInAnswer  []string `json:"expected_keywords_in_answer" yaml:"expected_keywords_in_answer"`
	ExpectedInContext []string `json:"expected_keywords_in_context" yaml:"expected_keywords_in_context"`
}

// Filter returns the metadata filter for the case.
func (c EvalCase) Filter() domain.Filter {
	return domain.NewFilter(c.Company, c.Year)
}

// DefaultEvalCases are the built-in annual report questions.
func DefaultEvalCases() []EvalCase {
	return []EvalCase{
		{
			ID:                1,
			Question:          "What were the total net sales reported by Amazon in 2023?",
			ExpectedInAnswer:  []string{"billion", "net sales", "Amazon"},
			ExpectedInContext: []string{"net sales", "revenue", "2023"},
		},
		{
			ID:                2,
			Question:          "What are some key risks mentioned in the Amazon 2023 annual report?",
			ExpectedInAnswer:  []string{"risk", "competition", "factors"},
			ExpectedInContext: []string{"risk factors", "competition", "challenges"},
		},
		{
			ID:                3,
			Question:          "Who is the current CEO of amazon?",
			Company:           "amazon",
			ExpectedInAnswer:  []string{"Satya Nadella", "CEO", "amazon"},
			ExpectedInContext: []string{"chief executive officer", "Andrew R. Jassy"},
		},
		{
			ID:                4,
			Question:          "What is the price of a Venti Latte at Starbucks in their latest report?",
			Company:           "Starbucks",
			ExpectedInAnswer:  []string{"not found", "not specified", "unable to determine"},
			ExpectedInContext: []string{},
		},
	}
}

type evalFile struct {
	Cases []EvalCase `json:"cases" yaml:"cases"`
}

// LoadEvalCases reads cases from a YAML (.yaml, .yml) or JSON file. Both a bare list
// and an object with a "cases" key are accepted.
func LoadEvalCases(path string) ([]EvalCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read eval file: %w", err)
	}

	unmarshal := json.Unmarshal
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	}

	var file evalFile
	if err := unmarshal(data, &file); err != nil || len(file.Cases) == 0 {
		var cases []EvalCase
		if err := unmarshal(data, &cases); err != nil {
			return nil, fmt.Errorf("failed to parse eval file: %w", err)
		}
		file.Cases = cases
	}

	if len(file.Cases) == 0 {
		return nil, fmt.Errorf("no eval cases provided")
	}
	for i, c := range file.Cases {
		if strings.TrimSpace(c.Question) == "" {
			return nil, fmt.Errorf("eval case %d: question is required", i+1)
		}
	}
	return file.Cases, nil
}

// Snippet is a truncated retrieved chunk.
type Snippet struct {
	Content  string          `json:"content"`
	Metadata domain.Metadata `json:"metadata"`
}

// EvalResult is the outcome of one case.
type EvalResult struct {
	ID                  int       `json:"id"`
	Question            string    `json:"question"`
	Filters             any       `json:"filters"`
	Status              string    `json:"status"`
	Error               string    `json:"error,omitempty"`
	RetrievalLatencySec float64   `json:"retrieval_latency_sec"`
	LLMLatencySec       float64   `json:"llm_latency_sec"`
	E2ELatencySec       float64   `json:"e2e_latency_sec"`
	RetrievedChunks     int       `json:"retrieved_chunks_count"`
	ContextScore        float64   `json:"context_keyword_score"`
	AnswerScore         float64   `json:"answer_keyword_score"`
	Answer              string    `json:"llm_answer,omitempty"`
	Snippets            []Snippet `json:"retrieved_contexts_snippets,omitempty"`
}

// EvalSummary aggregates a run.
type EvalSummary struct {
	Total             int     `json:"total_questions"`
	Successful        int     `json:"successful_runs"`
	AverageLatencySec float64 `json:"average_e2e_latency_sec"`
}

// EvalReport is a complete evaluation run.
type EvalReport struct {
	Summary EvalSummary  `json:"summary"`
	Results []EvalResult `json:"results"`
}

// RetrieverFactory builds a retriever scoped to a filter and result count.
type RetrieverFactory func(filter domain.Filter, k int) Retriever

// Evaluator runs eval cases against one collection.
type Evaluator struct {
	count     func(ctx context.Context) (int, error)
	retriever RetrieverFactory
	generator AnswerGenerator
	k         int
}

// NewEvaluator evaluates idx with generator, retrieving k chunks per question.
func NewEvaluator(idx *vectorstore.Index, generator AnswerGenerator, k int) *Evaluator {
	if idx == nil {
		return &Evaluator{generator: generator, k: k}
	}
	return NewEvaluatorWithRetrievers(idx.Count, func(f domain.Filter, k int) Retriever {
		return idx.Retriever(f, k)
	}, generator, k)
}

// NewEvaluatorWithRetrievers creates an Evaluator from its parts (for testing)
func NewEvaluatorWithRetrievers(count func(ctx context.Context) (int, error), retriever RetrieverFactory, generator AnswerGenerator, k int) *Evaluator {
	if k <= 0 {
		k = 3
	}
	return &Evaluator{count: count, retriever: retriever, generator: generator, k: k}
}

// Run evaluates every case. It refuses to start on a missing or empty collection.
func (e *Evaluator) Run(ctx context.Context, cases []EvalCase) (*EvalReport, error) {
	if e.count == nil || e.retriever == nil {
		return nil, domain.ErrNotReady
	}
	n, err := e.count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, domain.ErrIndexEmpty
	}

	report := &EvalReport{Results: make([]EvalResult, 0, len(cases))}
	var totalLatency float64

	for _, c := range cases {
		log.Printf("eval: question %d: %s (%s)", c.ID, c.Question, c.Filter())
		res := e.runCase(ctx, c)
		if res.Status == StatusSuccess {
			report.Summary.Successful++
			totalLatency += res.E2ELatencySec
		} else {
			log.Printf("eval: question %d failed: %s: %s", c.ID, res.Status, res.Error)
		}
		report.Results = append(report.Results, res)
	}

	report.Summary.Total = len(cases)
	if report.Summary.Successful > 0 {
		report.Summary.AverageLatencySec = round(totalLatency/float64(report.Summary.Successful), 4)
	}
	log.Printf("eval: %d/%d successful, average latency %.4fs",
		report.Summary.Successful, report.Summary.Total, report.Summary.AverageLatencySec)
	return report, nil
}

func (e *Evaluator) runCase(ctx context.Context, c EvalCase) EvalResult {
	filter := c.Filter()
	res := EvalResult{ID: c.ID, Question: c.Question, Filters: "None"}
	if !filter.IsEmpty() {
		res.Filters = filter.Constraints()
	}

	answer := BuildQA(e.retriever(filter, e.k), e.generator).Ask(ctx, c.Question)
	if answer.Fallback {
		res.Status = StatusRetrievalError
		if answer.Stage == StageGeneration {
			res.Status = StatusGenerationError
		}
		if answer.Err != nil {
			res.Error = answer.Err.Error()
		}
		return res
	}

	retrieval := answer.RetrievalLatency.Seconds()
	generation := answer.GenerationLatency.Seconds()

	res.Status = StatusSuccess
	res.RetrievalLatencySec = round(retrieval, 4)
	res.LLMLatencySec = round(generation, 4)
	res.E2ELatencySec = round(retrieval+generation, 4)
	res.RetrievedChunks = len(answer.Sources)
	res.ContextScore = round(KeywordScore(JoinContext(answer.Sources), c.ExpectedInContext), 2)
	res.AnswerScore = round(KeywordScore(answer.Text, c.ExpectedInAnswer), 2)
	res.Answer = answer.Text

	res.Snippets = make([]Snippet, len(answer.Sources))
	for i, s := range answer.Sources {
		res.Snippets[i] = Snippet{Content: truncateRunes(s.Content, snippetChars) + "...", Metadata: s.Metadata}
	}
	return res
}

// KeywordScore is the fraction of keywords found in text, case-insensitively. No
// keywords scores 1.
func KeywordScore(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 1
	}
	lower := strings.ToLower(text)
	found := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			found++
		}
	}
	return float64(found) / float64(len(keywords))
}

// WriteReport writes the report as indented JSON.
func WriteReport(path string, report *EvalReport) error {
	if path == "" {
		path = DefaultReportPath
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
