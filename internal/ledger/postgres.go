package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey is a stable PostgreSQL advisory lock key used to serialise
// concurrent Append calls. The value is arbitrary but must be consistent
// across all processes sharing the table.
const advisoryLockKey = int64(1_734_220_917)

// PostgresLedger persists the chain to the ledger_blocks table.
// It implements the Ledger interface.
type PostgresLedger struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	now    func() time.Time
}

// NewPostgresLedger creates a PostgresLedger backed by the given connection pool
// and writes the genesis block if the table is empty.
func NewPostgresLedger(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (*PostgresLedger, error) {
	l := &PostgresLedger{pool: pool, logger: logger, now: time.Now}
	if err := l.init(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *PostgresLedger) init(ctx context.Context) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}
	var n int
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM ledger_blocks").Scan(&n); err != nil {
		return fmt.Errorf("count ledger blocks: %w", err)
	}
	if n > 0 {
		return nil
	}
	genesis, err := newGenesis(l.now())
	if err != nil {
		return err
	}
	if err := insertBlockPostgres(ctx, tx, genesis); err != nil {
		return fmt.Errorf("insert genesis: %w", err)
	}
	return tx.Commit(ctx)
}

// Append implements Ledger.
// It acquires a PostgreSQL advisory lock, reads the chain tail, seals the new
// block, and inserts it, all within a single transaction.
func (l *PostgresLedger) Append(ctx context.Context, payload any) (*Block, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// The lock is released automatically when the transaction ends.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	prev, err := scanBlockPostgres(tx.QueryRow(ctx,
		`SELECT idx, ts_unix_nano, payload, prev_hash, hash
		 FROM ledger_blocks ORDER BY idx DESC LIMIT 1`))
	if err != nil {
		return nil, fmt.Errorf("read ledger tail: %w", err)
	}

	b, err := newBlock(prev, payload, l.now())
	if err != nil {
		return nil, err
	}
	if err := insertBlockPostgres(ctx, tx, b); err != nil {
		return nil, fmt.Errorf("insert ledger block: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit ledger tx: %w", err)
	}

	l.logger.Debug("ledger block appended", zap.Int("idx", b.Index))
	return b, nil
}

// Get implements Ledger.
func (l *PostgresLedger) Get(ctx context.Context, index int) (*Block, error) {
	b, err := scanBlockPostgres(l.pool.QueryRow(ctx,
		`SELECT idx, ts_unix_nano, payload, prev_hash, hash
		 FROM ledger_blocks WHERE idx = $1`, index))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("index %d: %w", index, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger block %d: %w", index, err)
	}
	return b, nil
}

// Len implements Ledger.
func (l *PostgresLedger) Len(ctx context.Context) (int, error) {
	var n int
	if err := l.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ledger_blocks").Scan(&n); err != nil {
		return 0, fmt.Errorf("count ledger blocks: %w", err)
	}
	return n, nil
}

// Verify implements Ledger. It streams all rows ordered by idx and validates
// the hash chain. O(n) in ledger length.
func (l *PostgresLedger) Verify(ctx context.Context) error {
	var prev *Block
	return l.each(ctx, func(curr *Block) error {
		if err := checkLink(prev, curr); err != nil {
			return err
		}
		prev = curr
		return nil
	})
}

// Root implements Ledger.
func (l *PostgresLedger) Root(ctx context.Context) (string, error) {
	var hash string
	if err := l.pool.QueryRow(ctx,
		"SELECT hash FROM ledger_blocks ORDER BY idx DESC LIMIT 1",
	).Scan(&hash); err != nil {
		return "", fmt.Errorf("get ledger root: %w", err)
	}
	return hash, nil
}

// Export implements Ledger.
func (l *PostgresLedger) Export(ctx context.Context) ([]View, error) {
	var out []View
	err := l.each(ctx, func(b *Block) error {
		out = append(out, b.View())
		return nil
	})
	return out, err
}

func (l *PostgresLedger) each(ctx context.Context, fn func(*Block) error) error {
	rows, err := l.pool.Query(ctx,
		`SELECT idx, ts_unix_nano, payload, prev_hash, hash
		 FROM ledger_blocks ORDER BY idx ASC`)
	if err != nil {
		return fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBlockPostgres(rows)
		if err != nil {
			return fmt.Errorf("scan ledger row: %w", err)
		}
		if err := fn(b); err != nil {
			return err
		}
	}
	return rows.Err()
}

func insertBlockPostgres(ctx context.Context, tx pgx.Tx, b *Block) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO ledger_blocks (idx, ts_unix_nano, payload, prev_hash, hash)
		 VALUES ($1, $2, $3, $4, $5)`,
		b.Index, b.Timestamp.UnixNano(), string(b.Payload), b.PrevHash, b.Hash,
	)
	return err
}

func scanBlockPostgres(row pgx.Row) (*Block, error) {
	var (
		b       Block
		nanos   int64
		payload string
	)
	if err := row.Scan(&b.Index, &nanos, &payload, &b.PrevHash, &b.Hash); err != nil {
		return nil, err
	}
	b.Timestamp = time.Unix(0, nanos).UTC()
	b.Payload = []byte(payload)
	return &b, nil
}
