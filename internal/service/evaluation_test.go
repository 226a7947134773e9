package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/reportqa/internal/domain"
)

func fixedCount(n int) func(context.Context) (int, error) {
	return func(context.Context) (int, error) { return n, nil }
}

func TestKeywordScore(t *testing.T) {
	assert.Equal(t, 1.0, KeywordScore("anything", nil))
	assert.Equal(t, 1.0, KeywordScore("", []string{}))
	assert.InDelta(t, 2.0/3.0, KeywordScore("Amazon NET SALES rose", []string{"billion", "net sales", "amazon"}), 1e-9)
	assert.Equal(t, 0.0, KeywordScore("", []string{"x"}))
}

func TestDefaultEvalCases(t *testing.T) {
	cases := DefaultEvalCases()

	require.Len(t, cases, 4)
	assert.True(t, cases[0].Filter().IsEmpty())
	assert.Equal(t, "amazon", *cases[2].Filter().CompanyName)
	assert.Equal(t, "Starbucks", *cases[3].Filter().CompanyName)
	assert.Empty(t, cases[3].ExpectedInContext)
}

func TestEvaluator_Run(t *testing.T) {
	long := strings.Repeat("n", 250)
	var gotFilters []domain.Filter
	var gotK []int
	factory := func(f domain.Filter, k int) Retriever {
		gotFilters = append(gotFilters, f)
		gotK = append(gotK, k)
		if f.CompanyName != nil && *f.CompanyName == "Starbucks" {
			return &stubRetriever{err: errors.New("index unavailable")}
		}
		return &stubRetriever{hits: []domain.ScoredChunk{
			scored("1", "Net sales revenue in 2023 "+long, "amzn.pdf", 0.9),
		}}
	}

	gen := new(MockGenerator)
	gen.On("Complete", mock.Anything, mock.Anything).Return("Amazon net sales were 574.8 billion.", nil)

	cases := []EvalCase{
		{ID: 1, Question: "Net sales?", ExpectedInAnswer: []string{"billion", "net sales", "Amazon"}, ExpectedInContext: []string{"net sales", "revenue", "2023"}},
		{ID: 2, Question: "Latte price?", Company: "Starbucks"},
	}

	report, err := NewEvaluatorWithRetrievers(fixedCount(10), factory, gen, 3).Run(context.Background(), cases)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.Successful)
	assert.Equal(t, []int{3, 3}, gotK)
	assert.True(t, gotFilters[0].IsEmpty())

	ok := report.Results[0]
	assert.Equal(t, StatusSuccess, ok.Status)
	assert.Equal(t, "None", ok.Filters)
	assert.Equal(t, 1.0, ok.ContextScore)
	assert.Equal(t, 1.0, ok.AnswerScore)
	assert.Equal(t, 1, ok.RetrievedChunks)
	require.Len(t, ok.Snippets, 1)
	assert.Len(t, []rune(ok.Snippets[0].Content), 203)
	assert.True(t, strings.HasSuffix(ok.Snippets[0].Content, "..."))
	assert.Equal(t, report.Summary.AverageLatencySec, ok.E2ELatencySec)

	failed := report.Results[1]
	assert.Equal(t, StatusRetrievalError, failed.Status)
	assert.Equal(t, map[string]string{domain.MetaCompanyName: "Starbucks"}, failed.Filters)
	assert.Contains(t, failed.Error, "index unavailable")
}

func TestEvaluator_GenerationError(t *testing.T) {
	factory := func(domain.Filter, int) Retriever {
		return &stubRetriever{hits: []domain.ScoredChunk{scored("1", "text", "a.txt", 0.5)}}
	}
	gen := new(MockGenerator)
	gen.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("timeout"))

	report, err := NewEvaluatorWithRetrievers(fixedCount(1), factory, gen, 3).
		Run(context.Background(), []EvalCase{{ID: 7, Question: "q?"}})

	require.NoError(t, err)
	assert.Equal(t, StatusGenerationError, report.Results[0].Status)
	assert.Zero(t, report.Summary.Successful)
	assert.Zero(t, report.Summary.AverageLatencySec)
}

func TestEvaluator_RefusesEmptyCollection(t *testing.T) {
	gen := new(MockGenerator)

	_, err := NewEvaluatorWithRetrievers(fixedCount(0), func(domain.Filter, int) Retriever { return &stubRetriever{} }, gen, 3).
		Run(context.Background(), DefaultEvalCases())
	assert.ErrorIs(t, err, domain.ErrIndexEmpty)

	_, err = NewEvaluator(nil, gen, 3).Run(context.Background(), DefaultEvalCases())
	assert.ErrorIs(t, err, domain.ErrNotReady)
}

func TestLoadEvalCases_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cases:
  - id: 1
    question: Who is the CEO?
    company: Amazon
    expected_keywords_in_answer: [CEO]
    expected_keywords_in_context: [chief executive officer]
`), 0o600))

	cases, err := LoadEvalCases(path)

	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "Amazon", cases[0].Company)
	assert.Equal(t, []string{"chief executive officer"}, cases[0].ExpectedInContext)
}

func TestLoadEvalCases_JSONList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": 2, "question": "Net sales?", "year": "2023"}]`), 0o600))

	cases, err := LoadEvalCases(path)

	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "2023", *cases[0].Filter().Year)
}

func TestLoadEvalCases_Invalid(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`[]`), 0o600))
	_, err := LoadEvalCases(empty)
	assert.Error(t, err)

	blank := filepath.Join(dir, "blank.yml")
	require.NoError(t, os.WriteFile(blank, []byte("- id: 1\n  question: \"\"\n"), 0o600))
	_, err = LoadEvalCases(blank)
	assert.Error(t, err)

	_, err = LoadEvalCases(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	report := &EvalReport{
		Summary: EvalSummary{Total: 1, Successful: 1, AverageLatencySec: 0.5},
		Results: []EvalResult{{ID: 1, Question: "q", Filters: "None", Status: StatusSuccess}},
	}

	require.NoError(t, WriteReport(path, report))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "summary")
	assert.Contains(t, string(data), "\n  \"results\"")
}
