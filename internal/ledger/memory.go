package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryLedger is an in-memory, thread-safe Ledger implementation.
// The append lock gives every block a unique index even under concurrent callers.
type MemoryLedger struct {
	mu     sync.RWMutex
	blocks []*Block
	now    func() time.Time
}

// New creates a MemoryLedger initialised with the genesis block.
func New() *MemoryLedger {
	l := &MemoryLedger{now: time.Now}
	genesis, err := newGenesis(l.now())
	if err != nil {
		// The genesis payload is a constant; encoding it cannot fail.
		panic(err)
	}
	l.blocks = append(l.blocks, genesis)
	return l
}

// Append implements Ledger.
func (l *MemoryLedger) Append(_ context.Context, payload any) (*Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := newBlock(l.blocks[len(l.blocks)-1], payload, l.now())
	if err != nil {
		return nil, err
	}
	l.blocks = append(l.blocks, b)
	cp := *b
	return &cp, nil
}

// Get implements Ledger.
func (l *MemoryLedger) Get(_ context.Context, index int) (*Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.blocks) {
		return nil, fmt.Errorf("index %d: %w", index, ErrNotFound)
	}
	cp := *l.blocks[index]
	return &cp, nil
}

// Len implements Ledger.
func (l *MemoryLedger) Len(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.blocks), nil
}

// Verify implements Ledger. Cost is linear in chain length.
func (l *MemoryLedger) Verify(_ context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var prev *Block
	for _, curr := range l.blocks {
		if err := checkLink(prev, curr); err != nil {
			return err
		}
		prev = curr
	}
	return nil
}

// Root implements Ledger.
func (l *MemoryLedger) Root(_ context.Context) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.blocks[len(l.blocks)-1].Hash, nil
}

// Export implements Ledger.
func (l *MemoryLedger) Export(_ context.Context) ([]View, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]View, len(l.blocks))
	for i, b := range l.blocks {
		out[i] = b.View()
	}
	return out, nil
}
