package vectorstore

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/cloo-solutions/reportqa/internal/domain"
)

// Manager owns collection lifecycle. Mutations of one (path, collection) pair are
// serialized; DeleteAll excludes every mutation under its path.
type Manager struct {
	backend  Backend
	embedder Embedder

	mu        sync.Mutex
	pathLocks map[string]*sync.RWMutex
	collLocks map[domain.CollectionRef]*sync.Mutex
}

func NewManager(backend Backend, embedder Embedder) *Manager {
	return &Manager{
		backend:   backend,
		embedder:  embedder,
		pathLocks: make(map[string]*sync.RWMutex),
		collLocks: make(map[domain.CollectionRef]*sync.Mutex),
	}
}

func (m *Manager) lockCollection(ref domain.CollectionRef) func() {
	m.mu.Lock()
	pl, ok := m.pathLocks[ref.Path]
	if !ok {
		pl = &sync.RWMutex{}
		m.pathLocks[ref.Path] = pl
	}
	cl, ok := m.collLocks[ref]
	if !ok {
		cl = &sync.Mutex{}
		m.collLocks[ref] = cl
	}
	m.mu.Unlock()

	pl.RLock()
	cl.Lock()
	return func() {
		cl.Unlock()
		pl.RUnlock()
	}
}

func (m *Manager) lockPath(path string) func() {
	m.mu.Lock()
	pl, ok := m.pathLocks[path]
	if !ok {
		pl = &sync.RWMutex{}
		m.pathLocks[path] = pl
	}
	m.mu.Unlock()

	pl.Lock()
	return pl.Unlock
}

// CreateAndPersist embeds chunks and stores them under ref. On failure it logs the
// cause and returns a nil Index.
func (m *Manager) CreateAndPersist(ctx context.Context, chunks []domain.Chunk, ref domain.CollectionRef) (*Index, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	unlock := m.lockCollection(ref)
	defer unlock()

	return m.create(ctx, chunks, ref)
}

// Replace deletes the existing collection and stores chunks in its place, holding the
// collection lock across both steps.
func (m *Manager) Replace(ctx context.Context, chunks []domain.Chunk, ref domain.CollectionRef) (*Index, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, domain.ErrEmptyInput
	}
	unlock := m.lockCollection(ref)
	defer unlock()

	if err := m.backend.DeleteCollection(ctx, ref); err != nil {
		log.Printf("vectorstore: failed to delete previous collection %s: %v", ref, err)
		return nil, domain.Wrap(domain.ErrStoreFailed, err)
	}
	return m.create(ctx, chunks, ref)
}

func (m *Manager) create(ctx context.Context, chunks []domain.Chunk, ref domain.CollectionRef) (*Index, error) {
	if len(chunks) == 0 {
		log.Printf("vectorstore: no chunks to persist for %s", ref)
		return nil, domain.ErrEmptyInput
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := m.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		log.Printf("vectorstore: failed to embed %d chunks for %s: %v", len(chunks), ref, err)
		return nil, domain.Wrap(domain.ErrProviderFailed, err)
	}

	records := make([]Record, len(chunks))
	for i, c := range chunks {
		records[i] = Record{Chunk: c, Embedding: vectors[i]}
	}
	if err := m.backend.Add(ctx, ref, records); err != nil {
		log.Printf("vectorstore: failed to persist %s: %v", ref, err)
		return nil, domain.Wrap(domain.ErrStoreFailed, err)
	}

	coll, err := m.backend.Open(ctx, ref)
	if err != nil {
		log.Printf("vectorstore: failed to reopen %s after write: %v", ref, err)
		return nil, domain.Wrap(domain.ErrStoreFailed, err)
	}

	log.Printf("vectorstore: persisted %d chunks to %s", len(records), ref)
	return NewIndex(ref, coll, m.embedder), nil
}

// Load opens an existing collection. It returns domain.ErrNoData when nothing is
// stored at the path and domain.ErrCollectionNotFound when the collection cannot be
// opened. An existing but empty collection loads successfully.
func (m *Manager) Load(ctx context.Context, ref domain.CollectionRef) (*Index, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	ok, err := m.backend.HasData(ctx, ref.Path)
	if err != nil {
		log.Printf("vectorstore: failed to inspect %s: %v", ref.Path, err)
		return nil, domain.Wrap(domain.ErrStoreFailed, err)
	}
	if !ok {
		return nil, domain.ErrNoData
	}

	coll, err := m.backend.Open(ctx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrNoData) || errors.Is(err, domain.ErrCollectionNotFound) {
			return nil, err
		}
		log.Printf("vectorstore: failed to open %s: %v", ref, err)
		return nil, domain.Wrap(domain.ErrCollectionNotFound, err)
	}
	return NewIndex(ref, coll, m.embedder), nil
}

// HasData reports whether anything is stored at path. Errors read as false.
func (m *Manager) HasData(ctx context.Context, path string) bool {
	ok, err := m.backend.HasData(ctx, path)
	if err != nil {
		log.Printf("vectorstore: failed to inspect %s: %v", path, err)
		return false
	}
	return ok
}

// DeleteCollection removes only the named collection; missing collections are a no-op.
func (m *Manager) DeleteCollection(ctx context.Context, ref domain.CollectionRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	unlock := m.lockCollection(ref)
	defer unlock()

	if err := m.backend.DeleteCollection(ctx, ref); err != nil {
		log.Printf("vectorstore: failed to delete collection %s: %v", ref, err)
		return domain.Wrap(domain.ErrStoreFailed, err)
	}
	log.Printf("vectorstore: deleted collection %s", ref)
	return nil
}

// DeleteAll removes the whole store at path, every collection included.
func (m *Manager) DeleteAll(ctx context.Context, path string) error {
	unlock := m.lockPath(path)
	defer unlock()

	if err := m.backend.DeleteAll(ctx, path); err != nil {
		log.Printf("vectorstore: failed to delete store %s: %v", path, err)
		return domain.Wrap(domain.ErrStoreFailed, err)
	}
	log.Printf("vectorstore: deleted store %s", path)
	return nil
}
