package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/reportqa/internal/domain"
	"github.com/cloo-solutions/reportqa/internal/vectorstore"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// VectorStoreRepository keeps collections in Postgres with pgvector. The store path
// becomes a namespace column so several logical stores can share one database.
type VectorStoreRepository struct {
	pool *pgxpool.Pool
}

var _ vectorstore.Backend = (*VectorStoreRepository)(nil)

func NewVectorStoreRepository(pool *pgxpool.Pool) *VectorStoreRepository {
	return &VectorStoreRepository{pool: pool}
}

func (r *VectorStoreRepository) HasData(ctx context.Context, path string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM vector_collections WHERE path = $1)`, path,
	).Scan(&exists)
	return exists, err
}

func (r *VectorStoreRepository) Add(ctx context.Context, ref domain.CollectionRef, records []vectorstore.Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	if err := addRecords(ctx, tx, ref, records); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func addRecords(ctx context.Context, db dbtx, ref domain.CollectionRef, records []vectorstore.Record) error {
	var collectionID string
	err := db.QueryRow(ctx,
		`INSERT INTO vector_collections (id, path, name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (path, name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		uuid.NewString(), ref.Path, ref.Name,
	).Scan(&collectionID)
	if err != nil {
		return fmt.Errorf("upsert collection: %w", err)
	}

	for _, rec := range records {
		id := rec.Chunk.ID
		if id == "" {
			id = uuid.NewString()
		}
		meta, err := json.Marshal(rec.Chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		_, err = db.Exec(ctx,
			`INSERT INTO vector_chunks (id, collection_id, content, metadata, embedding)
			 VALUES ($1, $2, $3, $4, $5)`,
			id, collectionID, rec.Chunk.Content, meta, pgvector.NewVector(rec.Embedding),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", id, err)
		}
	}
	return nil
}

func (r *VectorStoreRepository) Open(ctx context.Context, ref domain.CollectionRef) (vectorstore.Collection, error) {
	var id string
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM vector_collections WHERE path = $1 AND name = $2`, ref.Path, ref.Name,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			has, hasErr := r.HasData(ctx, ref.Path)
			if hasErr == nil && !has {
				return nil, domain.ErrNoData
			}
			return nil, domain.ErrCollectionNotFound
		}
		return nil, err
	}
	return &pgCollection{db: r.pool, id: id}, nil
}

// DeleteCollection removes chunks explicitly before the collection row.
func (r *VectorStoreRepository) DeleteCollection(ctx context.Context, ref domain.CollectionRef) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM vector_chunks WHERE collection_id IN
		   (SELECT id FROM vector_collections WHERE path = $1 AND name = $2)`,
		ref.Path, ref.Name,
	)
	if err == nil {
		_, err = tx.Exec(ctx, `DELETE FROM vector_collections WHERE path = $1 AND name = $2`, ref.Path, ref.Name)
	}
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *VectorStoreRepository) DeleteAll(ctx context.Context, path string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM vector_chunks WHERE collection_id IN
		   (SELECT id FROM vector_collections WHERE path = $1)`, path,
	)
	if err == nil {
		_, err = tx.Exec(ctx, `DELETE FROM vector_collections WHERE path = $1`, path)
	}
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type pgCollection struct {
	db dbtx
	id string
}

func (c *pgCollection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRow(ctx, `SELECT COUNT(*) FROM vector_chunks WHERE collection_id = $1`, c.id).Scan(&n)
	return n, err
}

// Search ranks by cosine similarity, 1 - cosine distance.
func (c *pgCollection) Search(ctx context.Context, vector []float32, k int, filter domain.Filter) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	constraints, err := json.Marshal(filter.Constraints())
	if err != nil {
		return nil, err
	}

	rows, err := c.db.Query(ctx,
		`SELECT id, content, metadata, 1 - (embedding <=> $1) AS score
		 FROM vector_chunks
		 WHERE collection_id = $2 AND metadata @> $3::jsonb
		 ORDER BY embedding <=> $1, id
		 LIMIT $4`,
		pgvector.NewVector(vector), c.id, string(constraints), k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.ScoredChunk, 0, k)
	for rows.Next() {
		var (
			hit   domain.ScoredChunk
			meta  []byte
			score float64
		)
		if err := rows.Scan(&hit.ID, &hit.Content, &meta, &score); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(meta, &hit.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", hit.ID, err)
		}
		hit.Score = float32(score)
		results = append(results, hit)
	}

	return results, rows.Err()
}

func (c *pgCollection) Values(ctx context.Context, key string) ([]string, error) {
	rows, err := c.db.Query(ctx,
		`SELECT DISTINCT metadata->>$2 FROM vector_chunks
		 WHERE collection_id = $1 AND metadata ? $2`,
		c.id, key,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
