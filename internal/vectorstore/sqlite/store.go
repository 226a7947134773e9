// Package sqlite is the on-disk vector store backend. Each store path holds one
// index.db file with every collection written under that path.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cloo-solutions/reportqa/internal/domain"
	"github.com/cloo-solutions/reportqa/internal/vectorstore"
)

// DBFile is the database file name inside a store path.
const DBFile = "index.db"

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT NOT NULL,
	collection_id TEXT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL,
	embedding BLOB NOT NULL,
	PRIMARY KEY (collection_id, id)
);
`

// Store implements vectorstore.Backend on SQLite files.
type Store struct {
	mu  sync.Mutex
	dbs map[string]*sql.DB
}

var _ vectorstore.Backend = (*Store)(nil)

// New creates a Store. Databases are opened lazily per path.
func New() *Store {
	return &Store{dbs: make(map[string]*sql.DB)}
}

// Close closes every cached database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for path, db := range s.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", path, err))
		}
		delete(s.dbs, path)
	}
	return errors.Join(errs...)
}

func dbPath(path string) string {
	return filepath.Join(path, DBFile)
}

// open returns the database for path. With create false a missing file yields
// domain.ErrNoData and nothing is written to disk.
func (s *Store) open(path string, create bool) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.dbs[path]; ok {
		return db, nil
	}

	file := dbPath(path)
	if _, err := os.Stat(file); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", file, err)
		}
		if !create {
			return nil, domain.ErrNoData
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", file+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialise schema: %w", err)
	}

	s.dbs[path] = db
	return db, nil
}

// HasData reports whether path holds at least one collection.
func (s *Store) HasData(ctx context.Context, path string) (bool, error) {
	db, err := s.open(path, false)
	if errors.Is(err, domain.ErrNoData) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections`).Scan(&n); err != nil {
		return false, fmt.Errorf("count collections: %w", err)
	}
	return n > 0, nil
}

// Add writes records to the collection, creating it when missing.
func (s *Store) Add(ctx context.Context, ref domain.CollectionRef, records []vectorstore.Record) error {
	db, err := s.open(ref.Path, true)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	collectionID, err := ensureCollection(ctx, tx, ref.Name)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, collection_id, content, metadata, embedding)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		id := r.Chunk.ID
		if id == "" {
			id = uuid.NewString()
		}
		meta, err := json.Marshal(r.Chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, id, collectionID, r.Chunk.Content, string(meta), float32SliceToBytes(r.Embedding)); err != nil {
			return fmt.Errorf("insert chunk %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func ensureCollection(ctx context.Context, tx *sql.Tx, name string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM collections WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("lookup collection: %w", err)
	}

	id = uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO collections (id, name, created_at) VALUES (?, ?, ?)`,
		id, name, time.Now().Unix(),
	); err != nil {
		return "", fmt.Errorf("create collection: %w", err)
	}
	return id, nil
}

// Open returns a read view over an existing collection.
func (s *Store) Open(ctx context.Context, ref domain.CollectionRef) (vectorstore.Collection, error) {
	db, err := s.open(ref.Path, false)
	if err != nil {
		return nil, err
	}

	var id string
	err = db.QueryRowContext(ctx, `SELECT id FROM collections WHERE name = ?`, ref.Name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCollectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup collection: %w", err)
	}
	return &collection{db: db, id: id}, nil
}

// DeleteCollection drops one collection and its chunks.
func (s *Store) DeleteCollection(ctx context.Context, ref domain.CollectionRef) error {
	db, err := s.open(ref.Path, false)
	if errors.Is(err, domain.ErrNoData) {
		return nil
	}
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks WHERE collection_id IN (SELECT id FROM collections WHERE name = ?)`, ref.Name,
	); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, ref.Name); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return tx.Commit()
}

// DeleteAll closes the database for path and removes the directory.
func (s *Store) DeleteAll(_ context.Context, path string) error {
	s.mu.Lock()
	if db, ok := s.dbs[path]; ok {
		_ = db.Close()
		delete(s.dbs, path)
	}
	s.mu.Unlock()

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove store directory: %w", err)
	}
	return nil
}

type collection struct {
	db *sql.DB
	id string
}

func (c *collection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE collection_id = ?`, c.id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Search scores every chunk that passes the filter and keeps the best k.
func (c *collection) Search(ctx context.Context, vector []float32, k int, filter domain.Filter) ([]domain.ScoredChunk, error) {
	query := `SELECT id, content, metadata, embedding FROM chunks WHERE collection_id = ?`
	args := []any{c.id}

	constraints := filter.Constraints()
	keys := make([]string, 0, len(constraints))
	for key := range constraints {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		query += ` AND json_extract(metadata, ?) = ?`
		args = append(args, "$."+key, constraints[key])
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var hits []domain.ScoredChunk
	for rows.Next() {
		var (
			id, content, meta string
			blob              []byte
		)
		if err := rows.Scan(&id, &content, &meta, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}

		var md domain.Metadata
		if err := json.Unmarshal([]byte(meta), &md); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", id, err)
		}

		hits = append(hits, domain.ScoredChunk{
			Chunk: domain.Chunk{ID: id, Content: content, Metadata: md},
			Score: vectorstore.CosineSimilarity(vector, bytesToFloat32Slice(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	return vectorstore.TopK(hits, k), nil
}

func (c *collection) Values(ctx context.Context, key string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT DISTINCT json_extract(metadata, ?) FROM chunks
		WHERE collection_id = ? AND json_extract(metadata, ?) IS NOT NULL
	`, "$."+key, c.id, "$."+key)
	if err != nil {
		return nil, fmt.Errorf("query values: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloat32Slice(buf []byte) []float32 {
	floats := make([]float32, len(buf)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return floats
}
