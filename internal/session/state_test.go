package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/reportqa/internal/domain"
)

func TestSourceLabel(t *testing.T) {
	assert.Equal(t, "short.pdf", SourceLabel("short.pdf"))

	long := "amazon-annual-report-2023-final-version.pdf"
	got := SourceLabel(long)
	assert.Len(t, got, 30)
	assert.True(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(long, strings.TrimPrefix(got, "...")))
}

func TestSourcesFromChunks(t *testing.T) {
	chunks := []domain.ScoredChunk{{
		Chunk: domain.Chunk{
			ID:      "1",
			Content: strings.Repeat("x", 400),
			Metadata: domain.Metadata{
				domain.MetaSource:      "r.pdf",
				domain.MetaCompanyName: "Acme",
				domain.MetaPage:        "3",
			},
		},
		Score: 0.75,
	}}

	sources := SourcesFromChunks(chunks)

	require.Len(t, sources, 1)
	assert.Equal(t, "r.pdf", sources[0].Source)
	assert.Equal(t, "N/A", sources[0].Year)
	assert.Equal(t, "3", sources[0].Page)
	assert.Len(t, sources[0].Preview, 353)
	assert.Nil(t, SourcesFromChunks(nil))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("upload_new")
	require.NoError(t, err)
	assert.Equal(t, ModeUploadNew, m)

	_, err = ParseMode("")
	assert.ErrorIs(t, err, domain.NewDomainError(domain.ErrCodeValidation, `unknown mode ""`))
}

func TestFilterLabel(t *testing.T) {
	s := NewState("s")
	assert.Equal(t, "No filters", s.FilterLabel())

	s.Filter = domain.NewFilter("", "2023")
	assert.Equal(t, "Filters: Year: 2023", s.FilterLabel())
}
