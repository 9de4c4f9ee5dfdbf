package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrCheckpointMismatch is returned when a checkpoint no longer matches the chain.
var ErrCheckpointMismatch = errors.New("checkpoint does not match ledger")

// CheckpointClaims are the JWT claims of a signed ledger checkpoint.
// A checkpoint pins the chain tip at a point in time, so a later rewrite of
// history can be detected by anyone holding the token.
type CheckpointClaims struct {
	jwt.RegisteredClaims
	Length int    `json:"ledger_length"`
	Root   string `json:"ledger_root"`
}

// Checkpointer issues and verifies HS256-signed checkpoints for a Ledger.
type Checkpointer struct {
	ledger Ledger
	key    []byte
	issuer string
	ttl    time.Duration
}

// NewCheckpointer creates a Checkpointer. ttl defaults to 24 hours when zero.
func NewCheckpointer(l Ledger, key []byte, issuer string, ttl time.Duration) *Checkpointer {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &Checkpointer{ledger: l, key: key, issuer: issuer, ttl: ttl}
}

// Issue signs a checkpoint over the current tip.
func (c *Checkpointer) Issue(ctx context.Context) (string, *CheckpointClaims, error) {
	n, err := c.ledger.Len(ctx)
	if err != nil {
		return "", nil, err
	}
	tip, err := c.ledger.Get(ctx, n-1)
	if err != nil {
		return "", nil, err
	}

	now := time.Now().UTC()
	claims := &CheckpointClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   "ledger",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			ID:        uuid.New().String(),
		},
		Length: tip.Index + 1,
		Root:   tip.Hash,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", nil, fmt.Errorf("sign checkpoint: %w", err)
	}
	return signed, claims, nil
}

// Verify parses a checkpoint token and confirms the block it names still
// carries the same hash.
func (c *Checkpointer) Verify(ctx context.Context, token string) (*CheckpointClaims, error) {
	parsed, err := jwt.ParseWithClaims(
		token,
		&CheckpointClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return c.key, nil
		},
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify checkpoint: %w", err)
	}
	claims, ok := parsed.Claims.(*CheckpointClaims)
	if !ok || !parsed.Valid || claims.Length < 1 {
		return nil, fmt.Errorf("invalid checkpoint claims")
	}

	b, err := c.ledger.Get(ctx, claims.Length-1)
	if errors.Is(err, ErrNotFound) {
		return claims, fmt.Errorf("%w: block %d missing", ErrCheckpointMismatch, claims.Length-1)
	}
	if err != nil {
		return nil, err
	}
	if b.Hash != claims.Root {
		return claims, fmt.Errorf("%w: block %d hash differs", ErrCheckpointMismatch, b.Index)
	}
	return claims, nil
}
