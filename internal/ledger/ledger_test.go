package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jmerrifield20/trustmesh/internal/ledger"
)

var ctx = context.Background()

func TestNew_genesisBlock(t *testing.T) {
	l := ledger.New()

	n, err := l.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 genesis block, got %d", n)
	}

	b, err := l.Get(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if string(b.Payload) != `{"event":"genesis"}` {
		t.Errorf("genesis payload: got %s", b.Payload)
	}
	if b.PrevHash != ledger.GenesisPrevHash {
		t.Errorf("genesis prev_hash: got %q, want %q", b.PrevHash, ledger.GenesisPrevHash)
	}
	if len(b.Hash) != 64 {
		t.Errorf("genesis hash should be hex sha256, got %q", b.Hash)
	}
}

func TestAppend_chainsCorrectly(t *testing.T) {
	l := ledger.New()

	b1, err := l.Append(ctx, map[string]any{"event": "register", "device_id": "Laptop_A", "trust": 0.5})
	if err != nil {
		t.Fatal(err)
	}
	b2, err := l.Append(ctx, map[string]any{"event": "revoke", "device_id": "Laptop_A"})
	if err != nil {
		t.Fatal(err)
	}

	if b1.Index != 1 || b2.Index != 2 {
		t.Errorf("indexes: got %d, %d; want 1, 2", b1.Index, b2.Index)
	}
	if b2.PrevHash != b1.Hash {
		t.Errorf("chain broken: b2.PrevHash=%q, want b1.Hash=%q", b2.PrevHash, b1.Hash)
	}

	n, err := l.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 { // genesis + 2
		t.Errorf("expected 3 blocks, got %d", n)
	}
}

func TestAppend_canonicalPayload(t *testing.T) {
	l := ledger.New()

	type reordered struct {
		Zeta  string `json:"zeta"`
		Alpha int    `json:"alpha"`
	}
	b, err := l.Append(ctx, reordered{Zeta: "z", Alpha: 1})
	if err != nil {
		t.Fatal(err)
	}
	if string(b.Payload) != `{"alpha":1,"zeta":"z"}` {
		t.Errorf("payload not canonical: %s", b.Payload)
	}
}

func TestAppend_rejectsUnencodablePayload(t *testing.T) {
	l := ledger.New()
	if _, err := l.Append(ctx, map[string]any{"ch": make(chan int)}); err == nil {
		t.Fatal("expected error for unencodable payload")
	}
	n, _ := l.Len(ctx)
	if n != 1 {
		t.Errorf("failed append must not grow the chain, len=%d", n)
	}
}

func TestAppend_concurrentUniqueIndexes(t *testing.T) {
	l := ledger.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := l.Append(ctx, map[string]int{"n": i}); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	n, _ := l.Len(ctx)
	if n != 51 {
		t.Fatalf("expected 51 blocks, got %d", n)
	}
	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify() after concurrent appends: %v", err)
	}
}

func TestVerify_valid(t *testing.T) {
	l := ledger.New()
	_, _ = l.Append(ctx, map[string]string{"event": "register"})
	_, _ = l.Append(ctx, map[string]string{"event": "benign_alert"})

	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify() failed on valid chain: %v", err)
	}
}

func TestVerify_genesisOnlyChain(t *testing.T) {
	l := ledger.New()
	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify() on genesis-only chain should pass: %v", err)
	}
}

func TestRoot_returnsLastHash(t *testing.T) {
	l := ledger.New()
	b, _ := l.Append(ctx, map[string]string{"event": "register"})

	root, err := l.Root(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if root != b.Hash {
		t.Errorf("Root(): got %q, want %q", root, b.Hash)
	}
}

func TestGet_outOfRange(t *testing.T) {
	l := ledger.New()
	if _, err := l.Get(ctx, 5); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := l.Get(ctx, -1); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected ErrNotFound for negative index, got %v", err)
	}
}

func TestGet_returnsCopy(t *testing.T) {
	l := ledger.New()
	b, _ := l.Append(ctx, map[string]string{"event": "register"})
	b.Hash = "tampered"

	if err := l.Verify(ctx); err != nil {
		t.Errorf("mutating a returned block must not affect the ledger: %v", err)
	}
}

func TestExport_rendersTimestamp(t *testing.T) {
	l := ledger.New()
	_, _ = l.Append(ctx, map[string]string{"event": "register"})

	views, err := l.Export(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	for _, v := range views {
		if len(v.Timestamp) != len(ledger.DisplayTimeLayout) {
			t.Errorf("timestamp %q not rendered with %q", v.Timestamp, ledger.DisplayTimeLayout)
		}
		if v.TimestampUnixNano == 0 {
			t.Errorf("block %d: missing raw timestamp", v.Index)
		}
	}
	if views[1].PrevHash != views[0].Hash {
		t.Error("exported chain not linked")
	}
}

func TestValid(t *testing.T) {
	ok, err := ledger.Valid(nil)
	if !ok || err != nil {
		t.Errorf("Valid(nil) = %v, %v", ok, err)
	}

	ok, err = ledger.Valid(ledger.ErrChainBroken)
	if ok || err != nil {
		t.Errorf("Valid(ErrChainBroken) = %v, %v", ok, err)
	}

	storage := errors.New("disk gone")
	ok, err = ledger.Valid(storage)
	if ok || !errors.Is(err, storage) {
		t.Errorf("Valid(storage) = %v, %v", ok, err)
	}
}
