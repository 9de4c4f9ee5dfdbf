package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmerrifield20/trustmesh/internal/sqlitedb"
	"go.uber.org/zap"
)

// SQLiteLedger persists the chain to the ledger_blocks table of a SQLite database.
// Appends run on the single writer connection inside one transaction, and an
// in-process mutex keeps the read-tail/insert step atomic.
type SQLiteLedger struct {
	db     *sqlitedb.DB
	logger *zap.Logger
	mu     sync.Mutex
	now    func() time.Time
}

// NewSQLiteLedger creates a SQLiteLedger and writes the genesis block if the
// table is empty.
func NewSQLiteLedger(ctx context.Context, db *sqlitedb.DB, logger *zap.Logger) (*SQLiteLedger, error) {
	l := &SQLiteLedger{db: db, logger: logger, now: time.Now}
	if err := l.init(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *SQLiteLedger) init(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	if err := l.db.Writer.QueryRowContext(ctx, "SELECT COUNT(*) FROM ledger_blocks").Scan(&n); err != nil {
		return fmt.Errorf("count ledger blocks: %w", err)
	}
	if n > 0 {
		return nil
	}
	genesis, err := newGenesis(l.now())
	if err != nil {
		return err
	}
	if err := insertBlockSQLite(ctx, l.db.Writer, genesis); err != nil {
		return fmt.Errorf("insert genesis: %w", err)
	}
	return nil
}

// Append implements Ledger.
func (l *SQLiteLedger) Append(ctx context.Context, payload any) (*Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	prev, err := scanBlockSQLite(tx.QueryRowContext(ctx,
		`SELECT idx, ts_unix_nano, payload, prev_hash, hash
		 FROM ledger_blocks ORDER BY idx DESC LIMIT 1`))
	if err != nil {
		return nil, fmt.Errorf("read ledger tail: %w", err)
	}

	b, err := newBlock(prev, payload, l.now())
	if err != nil {
		return nil, err
	}
	if err := insertBlockSQLite(ctx, tx, b); err != nil {
		return nil, fmt.Errorf("insert ledger block: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit ledger tx: %w", err)
	}

	l.logger.Debug("ledger block appended", zap.Int("idx", b.Index))
	return b, nil
}

// Get implements Ledger.
func (l *SQLiteLedger) Get(ctx context.Context, index int) (*Block, error) {
	b, err := scanBlockSQLite(l.db.Reader.QueryRowContext(ctx,
		`SELECT idx, ts_unix_nano, payload, prev_hash, hash
		 FROM ledger_blocks WHERE idx = ?`, index))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index %d: %w", index, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger block %d: %w", index, err)
	}
	return b, nil
}

// Len implements Ledger.
func (l *SQLiteLedger) Len(ctx context.Context) (int, error) {
	var n int
	if err := l.db.Reader.QueryRowContext(ctx, "SELECT COUNT(*) FROM ledger_blocks").Scan(&n); err != nil {
		return 0, fmt.Errorf("count ledger blocks: %w", err)
	}
	return n, nil
}

// Verify implements Ledger. It streams all rows ordered by idx.
func (l *SQLiteLedger) Verify(ctx context.Context) error {
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
func (l *SQLiteLedger) Root(ctx context.Context) (string, error) {
	var hash string
	if err := l.db.Reader.QueryRowContext(ctx,
		"SELECT hash FROM ledger_blocks ORDER BY idx DESC LIMIT 1",
	).Scan(&hash); err != nil {
		return "", fmt.Errorf("get ledger root: %w", err)
	}
	return hash, nil
}

// Export implements Ledger.
func (l *SQLiteLedger) Export(ctx context.Context) ([]View, error) {
	var out []View
	err := l.each(ctx, func(b *Block) error {
		out = append(out, b.View())
		return nil
	})
	return out, err
}

func (l *SQLiteLedger) each(ctx context.Context, fn func(*Block) error) error {
	rows, err := l.db.Reader.QueryContext(ctx,
		`SELECT idx, ts_unix_nano, payload, prev_hash, hash
		 FROM ledger_blocks ORDER BY idx ASC`)
	if err != nil {
		return fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBlockSQLite(rows)
		if err != nil {
			return fmt.Errorf("scan ledger row: %w", err)
		}
		if err := fn(b); err != nil {
			return err
		}
	}
	return rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func insertBlockSQLite(ctx context.Context, db execer, b *Block) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO ledger_blocks (idx, ts_unix_nano, payload, prev_hash, hash)
		 VALUES (?, ?, ?, ?, ?)`,
		b.Index, b.Timestamp.UnixNano(), string(b.Payload), b.PrevHash, b.Hash,
	)
	return err
}

func scanBlockSQLite(row scanner) (*Block, error) {
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
