package ledger

import (
	"context"
	"errors"
)

var (
	// ErrChainBroken is wrapped by every integrity failure reported by Verify.
	ErrChainBroken = errors.New("ledger chain broken")

	// ErrNotFound is returned by Get for an index outside the chain.
	ErrNotFound = errors.New("ledger block not found")
)

// Ledger is the interface for the append-only, hash-linked audit log.
// MemoryLedger, SQLiteLedger and PostgresLedger implement this interface.
type Ledger interface {
	// Append adds a new block chained to the current tip.
	// payload is stored in canonical JSON form.
	Append(ctx context.Context, payload any) (*Block, error)

	// Get returns the block at the given zero-based index.
	Get(ctx context.Context, index int) (*Block, error)

	// Len returns the total number of blocks (including genesis).
	Len(ctx context.Context) (int, error)

	// Verify walks the entire chain and checks hash consistency.
	// Returns nil if the chain is intact.
	Verify(ctx context.Context) error

	// Root returns the hash of the most recent block (the chain tip).
	Root(ctx context.Context) (string, error)

	// Export returns every block, in order, as display projections.
	Export(ctx context.Context) ([]View, error)
}

// Valid reports whether err from Verify means the chain is intact.
// Storage errors are returned as-is so callers can tell them apart from
// integrity failures.
func Valid(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrChainBroken):
		return false, nil
	default:
		return false, err
	}
}
