package credential

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps credentials in the credentials table of PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context) (map[string]Credential, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT device_id, credential_id, public_key, revoked, issued_at FROM credentials`)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	creds := make(map[string]Credential)
	for rows.Next() {
		var c Credential
		if err := rows.Scan(&c.DeviceID, &c.CredentialID, &c.PublicKey, &c.Revoked, &c.IssuedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		c.IssuedAt = c.IssuedAt.UTC()
		creds[c.DeviceID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return creds, nil
}

// Save implements Store. The table is replaced inside one transaction that
// holds an exclusive table lock, so concurrent savers cannot interleave.
func (s *PostgresStore) Save(ctx context.Context, creds map[string]Credential) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `LOCK TABLE credentials IN EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock credentials: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}

	batch := &pgx.Batch{}
	for _, c := range creds {
		batch.Queue(
			`INSERT INTO credentials (device_id, credential_id, public_key, revoked, issued_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			c.DeviceID, c.CredentialID, c.PublicKey, c.Revoked, c.IssuedAt,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert credentials: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit credentials: %w", err)
	}
	return nil
}
