package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/jmerrifield20/trustmesh/internal/sqlitedb"
)

// SQLiteStore keeps credentials in the credentials table of a SQLite database.
type SQLiteStore struct {
	db *sqlitedb.DB
}

// NewSQLiteStore creates a SQLiteStore on an opened database.
func NewSQLiteStore(db *sqlitedb.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context) (map[string]Credential, error) {
	const query = `SELECT device_id, credential_id, public_key, revoked, issued_at FROM credentials`
	rows, err := s.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	creds := make(map[string]Credential)
	for rows.Next() {
		var (
			c        Credential
			issuedAt string
		)
		if err := rows.Scan(&c.DeviceID, &c.CredentialID, &c.PublicKey, &c.Revoked, &issuedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		if c.IssuedAt, err = time.Parse(time.RFC3339Nano, issuedAt); err != nil {
			return nil, fmt.Errorf("parse issued_at for %q: %w", c.DeviceID, err)
		}
		creds[c.DeviceID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return creds, nil
}

// Save implements Store. The table is replaced inside one transaction.
func (s *SQLiteStore) Save(ctx context.Context, creds map[string]Credential) error {
	tx, err := s.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	const insert = `INSERT INTO credentials (device_id, credential_id, public_key, revoked, issued_at)
	                VALUES (?, ?, ?, ?, ?)`
	for _, c := range creds {
		if _, err := tx.ExecContext(ctx, insert,
			c.DeviceID, c.CredentialID, c.PublicKey, c.Revoked, c.IssuedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert credential %q: %w", c.DeviceID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit credentials: %w", err)
	}
	return nil
}
