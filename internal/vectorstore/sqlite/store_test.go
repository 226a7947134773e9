package sqlite_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/reportqa/internal/domain"
	"github.com/cloo-solutions/reportqa/internal/testutil"
	"github.com/cloo-solutions/reportqa/internal/vectorstore"
	"github.com/cloo-solutions/reportqa/internal/vectorstore/sqlite"
)

func chunk(id, content, company, year string) domain.Chunk {
	return domain.Chunk{
		ID:      id,
		Content: content,
		Metadata: domain.Metadata{
			domain.MetaSource:      id + ".txt",
			domain.MetaCompanyName: company,
			domain.MetaYear:        year,
		},
	}
}

func fixtureChunks() []domain.Chunk {
	return []domain.Chunk{
		chunk("a", "Amazon net sales revenue grew in 2023", "Amazon", "2023"),
		chunk("b", "Starbucks opened new coffee stores", "Starbucks", "2022"),
		chunk("c", "net sales", "Amazon", "2022"),
		chunk("d", "Amazon risk factors include competition", "Amazon", "2023"),
	}
}

func setup(t *testing.T) (*vectorstore.Manager, *testutil.HashEmbedder, domain.CollectionRef) {
	t.Helper()
	store := sqlite.New()
	t.Cleanup(func() { _ = store.Close() })

	emb := &testutil.HashEmbedder{}
	ref := domain.NewCollectionRef(filepath.Join(t.TempDir(), "store"), "reports")
	return vectorstore.NewManager(store, emb), emb, ref
}

func TestManager_PersistAndSearch(t *testing.T) {
	ctx := context.Background()
	m, _, ref := setup(t)

	idx, err := m.Replace(ctx, fixtureChunks(), ref)
	require.NoError(t, err)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	hits, err := idx.SimilaritySearch(ctx, "net sales", 3, domain.Filter{})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "c", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
	assert.Equal(t, "Amazon", hits[0].Metadata.CompanyName())
}

func TestManager_SearchHonoursFilter(t *testing.T) {
	ctx := context.Background()
	m, _, ref := setup(t)

	idx, err := m.Replace(ctx, fixtureChunks(), ref)
	require.NoError(t, err)

	hits, err := idx.SimilaritySearch(ctx, "net sales", 5, domain.NewFilter("Amazon", "2023"))
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, "Amazon", h.Metadata.CompanyName())
		assert.Equal(t, "2023", h.Metadata.Year())
	}

	hits, err = idx.SimilaritySearch(ctx, "net sales", 5, domain.NewFilter("Contoso", ""))
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestManager_ReplaceDropsPreviousChunks(t *testing.T) {
	ctx := context.Background()
	m, _, ref := setup(t)

	_, err := m.Replace(ctx, fixtureChunks(), ref)
	require.NoError(t, err)

	idx, err := m.Replace(ctx, []domain.Chunk{chunk("z", "only chunk", "Contoso", "2021")}, ref)
	require.NoError(t, err)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	companies, err := idx.MetadataValues(ctx, domain.MetaCompanyName)
	require.NoError(t, err)
	assert.Equal(t, []string{"Contoso"}, companies)
}

func TestManager_LoadMissingPath(t *testing.T) {
	m, _, ref := setup(t)

	_, err := m.Load(context.Background(), ref)
	assert.ErrorIs(t, err, domain.ErrNoData)

	_, statErr := os.Stat(ref.Path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "load must not create the store")
	assert.False(t, m.HasData(context.Background(), ref.Path))
}

func TestManager_LoadMissingCollection(t *testing.T) {
	ctx := context.Background()
	m, _, ref := setup(t)

	_, err := m.Replace(ctx, fixtureChunks(), ref)
	require.NoError(t, err)

	_, err = m.Load(ctx, domain.CollectionRef{Path: ref.Path, Name: "other"})
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
}

func TestManager_LoadReopensPersistedData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store")
	ref := domain.NewCollectionRef(path, "")

	first := sqlite.New()
	_, err := vectorstore.NewManager(first, &testutil.HashEmbedder{}).Replace(ctx, fixtureChunks(), ref)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := sqlite.New()
	t.Cleanup(func() { _ = second.Close() })
	idx, err := vectorstore.NewManager(second, &testutil.HashEmbedder{}).Load(ctx, ref)
	require.NoError(t, err)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, domain.DefaultCollectionName, idx.Ref().Name)
}

func TestManager_DeleteCollectionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m, _, ref := setup(t)
	other := domain.CollectionRef{Path: ref.Path, Name: "other"}

	_, err := m.Replace(ctx, fixtureChunks(), ref)
	require.NoError(t, err)
	_, err = m.Replace(ctx, fixtureChunks()[:1], other)
	require.NoError(t, err)

	require.NoError(t, m.DeleteCollection(ctx, ref))
	require.NoError(t, m.DeleteCollection(ctx, ref))

	_, err = m.Load(ctx, ref)
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)

	idx, err := m.Load(ctx, other)
	require.NoError(t, err)
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestManager_DeleteCollectionWithoutStore(t *testing.T) {
	m, _, ref := setup(t)
	assert.NoError(t, m.DeleteCollection(context.Background(), ref))
}

func TestManager_DeleteAll(t *testing.T) {
	ctx := context.Background()
	m, _, ref := setup(t)

	_, err := m.Replace(ctx, fixtureChunks(), ref)
	require.NoError(t, err)
	require.True(t, m.HasData(ctx, ref.Path))

	require.NoError(t, m.DeleteAll(ctx, ref.Path))

	assert.False(t, m.HasData(ctx, ref.Path))
	_, err = m.Load(ctx, ref)
	assert.ErrorIs(t, err, domain.ErrNoData)

	_, err = m.Replace(ctx, fixtureChunks()[:2], ref)
	require.NoError(t, err, "store can be recreated after deletion")
}

func TestManager_EmbeddingFailurePersistsNothing(t *testing.T) {
	ctx := context.Background()
	m, emb, ref := setup(t)
	emb.Err = errors.New("rate limited")

	idx, err := m.CreateAndPersist(ctx, fixtureChunks(), ref)
	assert.Nil(t, idx)
	assert.ErrorIs(t, err, domain.ErrProviderFailed)
	assert.False(t, m.HasData(ctx, ref.Path))
}

func TestManager_FailedReplaceLeavesNoCollection(t *testing.T) {
	ctx := context.Background()
	m, emb, ref := setup(t)

	_, err := m.Replace(ctx, fixtureChunks(), ref)
	require.NoError(t, err)

	emb.Err = errors.New("rate limited")
	idx, err := m.Replace(ctx, fixtureChunks()[:1], ref)
	assert.Nil(t, idx)
	assert.ErrorIs(t, err, domain.ErrProviderFailed)

	_, err = m.Load(ctx, ref)
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestManager_EmptyInput(t *testing.T) {
	m, _, ref := setup(t)

	_, err := m.CreateAndPersist(context.Background(), nil, ref)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)

	_, err = m.Replace(context.Background(), nil, domain.CollectionRef{})
	assert.ErrorIs(t, err, domain.ErrInvalidReference)
}

func TestRetriever_EmptyCollection(t *testing.T) {
	ctx := context.Background()
	store := sqlite.New()
	t.Cleanup(func() { _ = store.Close() })
	ref := domain.NewCollectionRef(filepath.Join(t.TempDir(), "store"), "empty")

	require.NoError(t, store.Add(ctx, ref, nil))

	idx, err := vectorstore.NewManager(store, &testutil.HashEmbedder{}).Load(ctx, ref)
	require.NoError(t, err)

	_, err = idx.Retriever(domain.Filter{}, 5).Retrieve(ctx, "anything")
	assert.ErrorIs(t, err, domain.ErrIndexEmpty)
}

func TestRetriever_UsesBoundFilter(t *testing.T) {
	ctx := context.Background()
	m, _, ref := setup(t)

	idx, err := m.Replace(ctx, fixtureChunks(), ref)
	require.NoError(t, err)

	r := idx.Retriever(domain.NewFilter("Starbucks", ""), 3)
	hits, err := r.Retrieve(ctx, "net sales")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)
	assert.Equal(t, 3, r.K())
}
