package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dwikikusuma/okhati-storefront/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS client_storage (
	key        TEXT    NOT NULL PRIMARY KEY,
	value      BLOB    NOT NULL,
	version    INTEGER NOT NULL,
	updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);
`

// Store keeps versioned records in a single sqlite table. Writes are
// compare-and-set on the version column.
type Store struct {
	db *sql.DB
}

func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create client_storage: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, key string) (storage.Record, error) {
	var rec storage.Record
	err := s.db.QueryRowContext(ctx,
		`SELECT value, version FROM client_storage WHERE key = ?`, key,
	).Scan(&rec.Value, &rec.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Record{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Record{}, err
	}
	return rec, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, expected uint64) (uint64, error) {
	var (
		res sql.Result
		err error
	)
	if expected == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO client_storage (key, value, version) VALUES (?, ?, 1)
			 ON CONFLICT(key) DO NOTHING`, key, value)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE client_storage SET value = ?, version = version + 1, updated_at = unixepoch()
			 WHERE key = ? AND version = ?`, value, key, expected)
	}
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, storage.ErrVersionConflict
	}
	return expected + 1, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM client_storage WHERE key = ?`, key)
	return err
}
