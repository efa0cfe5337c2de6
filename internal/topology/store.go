// Package topology owns the vector store, cluster assignments, and spatial
// queries (centroid, boundary, density) over the ProcessedItem universe.
package topology

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"catchup-feed/internal/domain/entity"
)

// Record is one stored vector plus its full ProcessedItem metadata, the
// persistent unit the store's capability set operates on.
type Record struct {
	Item      entity.ProcessedItem
	Embedding []float32
}

// Store is the abstract vector-store capability set per SPEC_FULL.md §9:
// put, get, bulk_scan, update_meta. Any implementation with persistent,
// process-local semantics qualifies; PostgresStore below is the one this
// module ships.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, externalID string) (*Record, error)
	Exists(ctx context.Context, externalIDs []string) (map[string]bool, error)
	BulkScan(ctx context.Context) ([]Record, error)
	UpdateClusterID(ctx context.Context, externalID string, clusterID int) error
	TotalCount(ctx context.Context) (int, error)
}

// PostgresStore persists records in Postgres using the pgvector extension,
// generalizing the teacher's per-embedding-type repository to a single
// table keyed by external_id with a cluster_id column.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an already-connected pool. Callers are expected to
// have run the `articles` table migration (see migrations in this package's
// doc comment) before use.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema is the DDL for the single table this store uses. It's issued at
// startup, guarded by IF NOT EXISTS, mirroring the teacher's wait-for-
// migrations startup pattern rather than a full migration framework.
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS articles (
	external_id       TEXT PRIMARY KEY,
	source_url        TEXT NOT NULL,
	title             TEXT NOT NULL,
	content           TEXT NOT NULL,
	published_at      TIMESTAMPTZ,
	vendor            TEXT NOT NULL,
	categories        JSONB NOT NULL DEFAULT '[]',
	metadata          JSONB NOT NULL DEFAULT '{}',
	summary           TEXT NOT NULL DEFAULT '',
	tags              JSONB NOT NULL DEFAULT '[]',
	is_primary_source BOOLEAN NOT NULL DEFAULT FALSE,
	tech_domain       TEXT NOT NULL DEFAULT '',
	source_plugin     TEXT NOT NULL DEFAULT '',
	collected_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	cluster_id        INTEGER NOT NULL DEFAULT -1,
	embedding         vector NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_articles_cluster_id ON articles (cluster_id);
CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles (published_at DESC);
`

func (s *PostgresStore) Put(ctx context.Context, rec Record) error {
	categories, err := json.Marshal(rec.Item.Categories)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(rec.Item.Metadata)
	if err != nil {
		return err
	}
	tags, err := json.Marshal(rec.Item.Tags)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO articles (
			external_id, source_url, title, content, published_at, vendor,
			categories, metadata, summary, tags, is_primary_source,
			tech_domain, source_plugin, collected_at, cluster_id, embedding
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (external_id) DO NOTHING`,
		rec.Item.ExternalID, rec.Item.SourceURL, rec.Item.Title, rec.Item.Content,
		rec.Item.PublishedAt, rec.Item.Vendor, categories, metadata, rec.Item.Summary,
		tags, rec.Item.IsPrimarySource, rec.Item.TechDomain, rec.Item.SourcePlugin,
		rec.Item.CollectedAt, rec.Item.ClusterID, pgvector.NewVector(rec.Embedding),
	)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, externalID string) (*Record, error) {
	row := s.pool.QueryRow(ctx, selectColumns+` WHERE external_id = $1`, externalID)
	rec, err := scanRecord(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func (s *PostgresStore) Exists(ctx context.Context, externalIDs []string) (map[string]bool, error) {
	exists := make(map[string]bool, len(externalIDs))
	if len(externalIDs) == 0 {
		return exists, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT external_id FROM articles WHERE external_id = ANY($1)`, externalIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		exists[id] = true
	}
	return exists, rows.Err()
}

func (s *PostgresStore) BulkScan(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx, selectColumns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateClusterID(ctx context.Context, externalID string, clusterID int) error {
	_, err := s.pool.Exec(ctx, `UPDATE articles SET cluster_id = $1 WHERE external_id = $2`, clusterID, externalID)
	return err
}

func (s *PostgresStore) TotalCount(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM articles`).Scan(&count)
	return count, err
}

const selectColumns = `
	SELECT external_id, source_url, title, content, published_at, vendor,
	       categories, metadata, summary, tags, is_primary_source,
	       tech_domain, source_plugin, collected_at, cluster_id, embedding
	FROM articles`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec              Record
		published        *time.Time
		categoriesRaw    []byte
		metadataRaw      []byte
		tagsRaw          []byte
		vec              pgvector.Vector
	)

	err := row.Scan(
		&rec.Item.ExternalID, &rec.Item.SourceURL, &rec.Item.Title, &rec.Item.Content,
		&published, &rec.Item.Vendor, &categoriesRaw, &metadataRaw, &rec.Item.Summary,
		&tagsRaw, &rec.Item.IsPrimarySource, &rec.Item.TechDomain, &rec.Item.SourcePlugin,
		&rec.Item.CollectedAt, &rec.Item.ClusterID, &vec,
	)
	if err != nil {
		return nil, err
	}

	rec.Item.PublishedAt = published
	rec.Embedding = vec.Slice()

	if len(categoriesRaw) > 0 {
		if err := json.Unmarshal(categoriesRaw, &rec.Item.Categories); err != nil {
			return nil, fmt.Errorf("decode categories: %w", err)
		}
	}
	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &rec.Item.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if len(tagsRaw) > 0 {
		if err := json.Unmarshal(tagsRaw, &rec.Item.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}

	return &rec, nil
}
