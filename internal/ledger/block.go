package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// GenesisPrevHash is the sentinel PrevHash of the block at index 0.
const GenesisPrevHash = "0"

// DisplayTimeLayout is the rendering used for exported timestamps.
const DisplayTimeLayout = "2006-01-02 15:04:05"

// genesisPayload is the fixed payload of the genesis block.
var genesisPayload = json.RawMessage(`{"event":"genesis"}`)

// Block is a single record in the ledger.
type Block struct {
	Index     int             `json:"index"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"` // canonical JSON
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

// View is the exported projection of a Block. Timestamp is display-only;
// TimestampUnixNano is the value the hash was computed over.
type View struct {
	Index             int             `json:"index"`
	Timestamp         string          `json:"timestamp"`
	TimestampUnixNano int64           `json:"timestamp_unix_nano"`
	Payload           json.RawMessage `json:"payload"`
	PrevHash          string          `json:"prev_hash"`
	Hash              string          `json:"hash"`
}

// View returns the export projection of b.
func (b *Block) View() View {
	return View{
		Index:             b.Index,
		Timestamp:         b.Timestamp.UTC().Format(DisplayTimeLayout),
		TimestampUnixNano: b.Timestamp.UnixNano(),
		Payload:           b.Payload,
		PrevHash:          b.PrevHash,
		Hash:              b.Hash,
	}
}

// Decode unmarshals the block payload into v.
func (b *Block) Decode(v any) error {
	return json.Unmarshal(b.Payload, v)
}

// Decode unmarshals the exported payload into v.
func (v View) Decode(dst any) error {
	return json.Unmarshal(v.Payload, dst)
}

// canonicalBlock fixes the key order of the hashed form. Fields are declared
// in lexicographic order of their JSON names.
type canonicalBlock struct {
	Index     int             `json:"index"`
	Payload   json.RawMessage `json:"payload"`
	PrevHash  string          `json:"prev_hash"`
	Timestamp int64           `json:"timestamp"`
}

// hashBlock computes the SHA-256 digest over the canonical form of b.
// The raw timestamp (Unix nanoseconds) is hashed, never its rendering.
func hashBlock(b *Block) (string, error) {
	data, err := json.Marshal(canonicalBlock{
		Index:     b.Index,
		Payload:   b.Payload,
		PrevHash:  b.PrevHash,
		Timestamp: b.Timestamp.UnixNano(),
	})
	if err != nil {
		return "", fmt.Errorf("encode block %d: %w", b.Index, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize converts payload into compact JSON with object keys sorted.
// Numbers keep their literal text so a stored payload re-hashes identically.
func canonicalize(payload any) (json.RawMessage, error) {
	var raw []byte
	switch p := payload.(type) {
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		raw = b
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal canonical payload: %w", err)
	}
	return out, nil
}

// newBlock builds and seals the block that follows prev. prev is nil for genesis.
func newBlock(prev *Block, payload any, now time.Time) (*Block, error) {
	canon, err := canonicalize(payload)
	if err != nil {
		return nil, err
	}
	b := &Block{
		Timestamp: now.UTC(),
		Payload:   canon,
		PrevHash:  GenesisPrevHash,
	}
	if prev != nil {
		b.Index = prev.Index + 1
		b.PrevHash = prev.Hash
	}
	if b.Hash, err = hashBlock(b); err != nil {
		return nil, err
	}
	return b, nil
}

// newGenesis builds the genesis block.
func newGenesis(now time.Time) (*Block, error) {
	return newBlock(nil, genesisPayload, now)
}

// checkLink validates curr against its predecessor. prev is nil for genesis.
func checkLink(prev, curr *Block) error {
	if prev == nil {
		if curr.Index != 0 || curr.PrevHash != GenesisPrevHash {
			return fmt.Errorf("%w: invalid genesis block", ErrChainBroken)
		}
	} else {
		if curr.Index != prev.Index+1 {
			return fmt.Errorf("%w: index gap at %d", ErrChainBroken, curr.Index)
		}
		if curr.PrevHash != prev.Hash {
			return fmt.Errorf("%w: hash chain broken at index %d", ErrChainBroken, curr.Index)
		}
	}
	want, err := hashBlock(curr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChainBroken, err)
	}
	if curr.Hash != want {
		return fmt.Errorf("%w: block %d has invalid hash", ErrChainBroken, curr.Index)
	}
	return nil
}
