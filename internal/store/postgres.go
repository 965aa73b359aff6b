// internal/store/postgres.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rgillies/switchgame/internal/models"
)

// Postgres is the pgx-backed Store. Snapshots live in a single games
// table with the serialized state as JSONB.
type Postgres struct {
	pool *pgxpool.Pool
}

// Schema is the DDL the store expects. Applied out of band (migrations
// are the deployment's concern).
const Schema = `
CREATE TABLE IF NOT EXISTS games (
	id UUID PRIMARY KEY,
	status TEXT NOT NULL,
	state JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS games_status_idx ON games (status);
`

// ConnectPostgres opens a pgx pool against databaseURL and verifies it
// with a ping.
func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Save upserts the snapshot for its game id.
func (p *Postgres) Save(ctx context.Context, snap models.Snapshot) error {
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO games (id, status, state, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (id)
			DO UPDATE SET status = EXCLUDED.status, state = EXCLUDED.state, updated_at = NOW()
		`
		_, err := tx.Exec(ctx, q, snap.GameID, snap.Status, []byte(snap.State))
		return err
	})
}

// Load fetches one snapshot, or ErrNotFound.
func (p *Postgres) Load(ctx context.Context, id uuid.UUID) (models.Snapshot, error) {
	q := `SELECT id, status, state, updated_at FROM games WHERE id = $1`
	snap, err := scanSnapshot(p.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Snapshot{}, ErrNotFound
	}
	return snap, err
}

// Delete removes the persisted record. Deleting an absent id is not an
// error.
func (p *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM games WHERE id = $1`, id)
	return err
}

// ListByStatus returns all snapshots with the given lifecycle status.
func (p *Postgres) ListByStatus(ctx context.Context, status string) ([]models.Snapshot, error) {
	q := `SELECT id, status, state, updated_at FROM games WHERE status = $1 ORDER BY updated_at`
	rows, err := p.pool.Query(ctx, q, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSnapshots(rows)
}

// ListStale returns snapshots idle past their status cutoff.
func (p *Postgres) ListStale(ctx context.Context, cutoffs StaleCutoffs) ([]models.Snapshot, error) {
	q := `
		SELECT id, status, state, updated_at FROM games
		WHERE (status = 'finished'  AND updated_at < NOW() - $1::interval)
		   OR (status = 'corrupted' AND updated_at < NOW() - $1::interval)
		   OR (status = 'waiting'   AND updated_at < NOW() - $2::interval)
		   OR (status = 'playing'   AND updated_at < NOW() - $3::interval)
	`
	rows, err := p.pool.Query(ctx, q, cutoffs.Finished, cutoffs.Waiting, cutoffs.InProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSnapshots(rows)
}

func scanSnapshot(row pgx.Row) (models.Snapshot, error) {
	var snap models.Snapshot
	var state []byte
	if err := row.Scan(&snap.GameID, &snap.Status, &state, &snap.UpdatedAt); err != nil {
		return models.Snapshot{}, err
	}
	snap.State = state
	return snap, nil
}

func collectSnapshots(rows pgx.Rows) ([]models.Snapshot, error) {
	var snaps []models.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
