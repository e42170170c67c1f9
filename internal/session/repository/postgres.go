package repository

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresBackend stores snapshots in the auth_snapshots table (see internal/db/migrations).
type PostgresBackend struct {
	db *sql.DB
}

// NewPostgresBackend returns a backend that uses the given db for persistence.
func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

const (
	loadSnapshotSQL   = `SELECT value FROM auth_snapshots WHERE key = $1`
	upsertSnapshotSQL = `INSERT INTO auth_snapshots (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	deleteSnapshotSQL = `DELETE FROM auth_snapshots WHERE key = $1`
)

// Load returns the stored value for key, or ErrNotFound when there is no row.
func (b *PostgresBackend) Load(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.db.QueryRowContext(ctx, loadSnapshotSQL, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

// Save upserts the value for key. data must be JSON (the column is jsonb).
func (b *PostgresBackend) Save(ctx context.Context, key string, data []byte) error {
	_, err := b.db.ExecContext(ctx, upsertSnapshotSQL, key, string(data))
	return err
}

// Delete removes the row for key. Returns ErrNotFound when nothing was deleted.
func (b *PostgresBackend) Delete(ctx context.Context, key string) error {
	res, err := b.db.ExecContext(ctx, deleteSnapshotSQL, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
