// Package state owns BrainStream's small relational store: Thompson-
// Sampling cluster arms and the action log, persisted in a SQLite file per
// SPEC_FULL.md §1.2 (state.db). Schema and upsert semantics mirror
// original_source's core/database.py exactly.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"catchup-feed/internal/domain/entity"
)

const schema = `
CREATE TABLE IF NOT EXISTS cluster_arms (
	cluster_id    INTEGER PRIMARY KEY,
	alpha         REAL NOT NULL DEFAULT 1.0,
	beta          REAL NOT NULL DEFAULT 1.0,
	article_count INTEGER NOT NULL DEFAULT 0,
	label         TEXT NOT NULL DEFAULT '',
	updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS action_logs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	article_id  TEXT NOT NULL,
	action      TEXT NOT NULL,
	cluster_id  INTEGER,
	created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// Store is the Feed Selector's arm and action-log persistence layer.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite file at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 driver: single-writer, avoids SQLITE_BUSY under our own concurrency
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// GetClusterArm returns the arm for clusterID, or nil if none exists yet.
func (s *Store) GetClusterArm(ctx context.Context, clusterID int) (*entity.ClusterArm, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT cluster_id, alpha, beta, article_count, label, updated_at
		FROM cluster_arms WHERE cluster_id = ?`, clusterID)
	return scanArm(row)
}

// GetAllClusterArms returns every arm currently stored.
func (s *Store) GetAllClusterArms(ctx context.Context) ([]entity.ClusterArm, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cluster_id, alpha, beta, article_count, label, updated_at FROM cluster_arms`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var arms []entity.ClusterArm
	for rows.Next() {
		arm, err := scanArm(rows)
		if err != nil {
			return nil, err
		}
		arms = append(arms, *arm)
	}
	return arms, rows.Err()
}

// UpsertClusterArm creates a missing arm with prior (1,1), or refreshes
// article_count for an existing one. It never overwrites a non-empty
// label with an empty one, matching original_source's CASE-guarded UPDATE.
func (s *Store) UpsertClusterArm(ctx context.Context, clusterID int, articleCount int) error {
	now := nowString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cluster_arms (cluster_id, alpha, beta, article_count, label, updated_at)
		VALUES (?, 1.0, 1.0, ?, '', ?)
		ON CONFLICT(cluster_id) DO UPDATE SET
			article_count = excluded.article_count,
			label = CASE WHEN excluded.label != '' THEN excluded.label ELSE cluster_arms.label END,
			updated_at = excluded.updated_at`,
		clusterID, articleCount, now)
	return err
}

// UpdateArmReward increments alpha on success, beta otherwise, implementing
// the Thompson-Sampling reward update.
func (s *Store) UpdateArmReward(ctx context.Context, clusterID int, success bool) error {
	now := nowString()
	if success {
		_, err := s.db.ExecContext(ctx, `
			UPDATE cluster_arms SET alpha = alpha + 1, updated_at = ? WHERE cluster_id = ?`, now, clusterID)
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE cluster_arms SET beta = beta + 1, updated_at = ? WHERE cluster_id = ?`, now, clusterID)
	return err
}

// LogAction durably appends an ActionLogEntry. Callers must call this
// before UpdateArmReward so a crash between the two leaves the arm
// under-counted, never over-counted.
func (s *Store) LogAction(ctx context.Context, articleID string, action entity.Action, clusterID *int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_logs (article_id, action, cluster_id, created_at)
		VALUES (?, ?, ?, ?)`, articleID, string(action), clusterID, nowString())
	return err
}

// GetActionLogs returns the most recent action log entries, newest first.
func (s *Store) GetActionLogs(ctx context.Context, limit int) ([]entity.ActionLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, article_id, action, cluster_id, created_at
		FROM action_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.ActionLogEntry
	for rows.Next() {
		var (
			entry       entity.ActionLogEntry
			clusterID   sql.NullInt64
			action      string
			createdAtStr string
		)
		if err := rows.Scan(&entry.ID, &entry.ArticleID, &action, &clusterID, &createdAtStr); err != nil {
			return nil, err
		}
		entry.Action = entity.Action(action)
		if clusterID.Valid {
			v := int(clusterID.Int64)
			entry.ClusterID = &v
		}
		entry.CreatedAt = parseTime(createdAtStr)
		out = append(out, entry)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArm(row rowScanner) (*entity.ClusterArm, error) {
	var (
		arm          entity.ClusterArm
		updatedAtStr string
	)
	err := row.Scan(&arm.ClusterID, &arm.Alpha, &arm.Beta, &arm.ArticleCount, &arm.Label, &updatedAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	arm.UpdatedAt = parseTime(updatedAtStr)
	return &arm, nil
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
