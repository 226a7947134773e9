package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/reportqa/internal/domain"
	"github.com/cloo-solutions/reportqa/internal/loader"
	"github.com/cloo-solutions/reportqa/internal/testutil"
	"github.com/cloo-solutions/reportqa/internal/vectorstore"
	"github.com/cloo-solutions/reportqa/internal/vectorstore/sqlite"
)

type memoryArchiver struct {
	mu      sync.Mutex
	objects map[string]string
	err     error
}

func newMemoryArchiver() *memoryArchiver {
	return &memoryArchiver{objects: map[string]string{}}
}

func (a *memoryArchiver) Put(_ context.Context, key string, _ []byte, contentType string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.objects[key] = contentType
	return nil
}

func (a *memoryArchiver) DeletePrefix(_ context.Context, prefix string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for k := range a.objects {
		if strings.HasPrefix(k, prefix) {
			delete(a.objects, k)
			n++
		}
	}
	return n, nil
}

type ingestFixture struct {
	svc      *IngestService
	manager  *vectorstore.Manager
	archiver *memoryArchiver
	ref      domain.CollectionRef
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	store := sqlite.New()
	t.Cleanup(func() { _ = store.Close() })

	emb := &testutil.HashEmbedder{}
	manager := vectorstore.NewManager(store, emb)
	ref := domain.NewCollectionRef(filepath.Join(t.TempDir(), "store"), "")
	archiver := newMemoryArchiver()

	svc := NewIngestService(
		loader.New(loader.NewRegistry(loader.Tools{})),
		NewSemanticChunker(emb, DefaultChunkConfig()),
		manager,
		archiver,
		ref,
	)
	return &ingestFixture{svc: svc, manager: manager, archiver: archiver, ref: ref}
}

func TestIngestService_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t)

	result, err := f.svc.Ingest(ctx, []domain.Upload{{
		Filename:    "acme.txt",
		Content:     []byte("Revenue grew 10% in 2023 for Acme Corp."),
		CompanyName: "Acme",
		Year:        "2023",
	}})
	require.NoError(t, err)
	require.NotNil(t, result.Index)
	assert.Equal(t, 1, result.Chunks)
	assert.Equal(t, 1, result.Report.Loaded())

	gen := new(MockGenerator)
	gen.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Revenue grew 10% in 2023 for Acme Corp.")
	})).Return("Revenue grew 10% in 2023.", nil)

	answer := BuildQA(result.Index.Retriever(domain.NewFilter("Acme", ""), 5), gen).
		Ask(ctx, "How much did revenue grow?")

	require.False(t, answer.Fallback, "%v", answer.Err)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "acme.txt", answer.Sources[0].Metadata.Source())
	gen.AssertExpectations(t)

	assert.Contains(t, f.archiver.objects, domain.DefaultCollectionName+"/"+result.BatchID+"/acme.txt")
}

func TestIngestService_ReingestReplacesChunks(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t)

	_, err := f.svc.Ingest(ctx, []domain.Upload{{Filename: "old.txt", Content: []byte("Old company data."), CompanyName: "Old"}})
	require.NoError(t, err)

	result, err := f.svc.Ingest(ctx, []domain.Upload{{Filename: "new.txt", Content: []byte("New company data."), CompanyName: "New"}})
	require.NoError(t, err)

	opts, err := AvailableFilters(ctx, result.Index)
	require.NoError(t, err)
	assert.Equal(t, []string{"New"}, opts.Companies)

	idx, err := f.manager.Load(ctx, f.ref)
	require.NoError(t, err)
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngestService_BlankMetadataBecomesNotSpecified(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t)

	result, err := f.svc.Ingest(ctx, []domain.Upload{{
		Filename: "notes.txt",
		Content:  []byte("First point here. Second point follows. Third point closes."),
	}})
	require.NoError(t, err)

	hits, err := result.Index.SimilaritySearch(ctx, "point", 10, domain.Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	for _, h := range hits {
		assert.Equal(t, domain.NotSpecified, h.Metadata.CompanyName())
		assert.Equal(t, domain.NotSpecified, h.Metadata.Year())
	}
}

func TestIngestService_NothingExtracted(t *testing.T) {
	f := newIngestFixture(t)

	result, err := f.svc.Ingest(context.Background(), []domain.Upload{{Filename: "sheet.xlsx", Content: []byte("x")}})

	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
	require.NotNil(t, result)
	require.Len(t, result.Report.Files, 1)
	assert.Equal(t, domain.FileStatusUnsupported, result.Report.Files[0].Status)
	assert.False(t, f.manager.HasData(context.Background(), f.ref.Path))
}

func TestIngestService_EmptyUploads(t *testing.T) {
	f := newIngestFixture(t)

	_, err := f.svc.Ingest(context.Background(), nil)

	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestIngestService_ArchiveFailureIsNotFatal(t *testing.T) {
	f := newIngestFixture(t)
	f.archiver.err = errors.New("bucket missing")

	result, err := f.svc.Ingest(context.Background(), []domain.Upload{{Filename: "a.txt", Content: []byte("Some text.")}})

	require.NoError(t, err)
	assert.NotNil(t, result.Index)
}

func TestIngestService_Purge(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t)

	_, err := f.svc.Ingest(ctx, []domain.Upload{{Filename: "a.txt", Content: []byte("Some text.")}})
	require.NoError(t, err)
	require.Len(t, f.archiver.objects, 1)

	require.NoError(t, f.svc.Purge(ctx))
	assert.Empty(t, f.archiver.objects)
}

func TestReadUploads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	uploads, err := ReadUploads([]string{path}, "Acme", "2024")

	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, "report.txt", uploads[0].Filename)
	assert.Equal(t, "Acme", uploads[0].CompanyName)
	assert.Equal(t, []byte("hello"), uploads[0].Content)

	_, err = ReadUploads([]string{filepath.Join(dir, "missing.txt")}, "", "")
	assert.Error(t, err)
}
