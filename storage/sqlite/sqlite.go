// Package sqlite provides a SQLite-backed implementation of storage.Store
// using the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/jmcleod/keyguard/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS provider_records (
	provider        TEXT PRIMARY KEY,
	credential_id   BLOB,
	credential_data BLOB,
	wrapped_key     BLOB,
	iv              BLOB,
	ciphertext      BLOB,
	scheme          TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);
`

// Store implements storage.Store backed by a SQLite database.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// NewStore opens (or creates) a SQLite database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("db path cannot be empty")
	}
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", path, int((5 * time.Second).Milliseconds()))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, rec *storage.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_records
			(provider, credential_id, credential_data, wrapped_key, iv, ciphertext, scheme, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			credential_id = excluded.credential_id,
			credential_data = excluded.credential_data,
			wrapped_key = excluded.wrapped_key,
			iv = excluded.iv,
			ciphertext = excluded.ciphertext,
			scheme = excluded.scheme,
			updated_at = excluded.updated_at`,
		rec.Provider, rec.CredentialID, rec.CredentialData,
		rec.WrappedKey, rec.IV, rec.Ciphertext, rec.Scheme,
		rec.CreatedAt.UnixNano(), rec.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("storing record for %s: %w", rec.Provider, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, provider string) (*storage.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT provider, credential_id, credential_data, wrapped_key, iv, ciphertext, scheme, created_at, updated_at
		FROM provider_records WHERE provider = ?`, provider)

	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", provider, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading record for %s: %w", provider, err)
	}
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, provider string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM provider_records WHERE provider = ?`, provider)
	if err != nil {
		return fmt.Errorf("deleting record for %s: %w", provider, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", provider, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]*storage.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, credential_id, credential_data, wrapped_key, iv, ciphertext, scheme, created_at, updated_at
		FROM provider_records ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var records []*storage.Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(scan func(dest ...any) error) (*storage.Record, error) {
	var rec storage.Record
	var createdAt, updatedAt int64
	err := scan(&rec.Provider, &rec.CredentialID, &rec.CredentialData,
		&rec.WrappedKey, &rec.IV, &rec.Ciphertext, &rec.Scheme,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = time.Unix(0, createdAt)
	rec.UpdatedAt = time.Unix(0, updatedAt)
	return &rec, nil
}
