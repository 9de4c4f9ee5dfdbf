// Package credential implements the Credential Directory: the persisted
// mapping from device identity to its issued credential and revocation flag.
//
// The directory is loaded fully from its Store at startup and rewritten fully
// after every mutation. Lookups for unknown devices fail closed.
package credential

import (
	"context"
	"errors"
	"time"
)

// ErrPersistence wraps every failure to load or save the backing store.
// It is the only fatal error class of the directory.
var ErrPersistence = errors.New("credential store unavailable")

// Credential is the per-device registration record.
type Credential struct {
	CredentialID string    `json:"credential_id"`
	DeviceID     string    `json:"device_id"`
	PublicKey    string    `json:"public_key"` // opaque, never validated
	Revoked      bool      `json:"revoked"`
	IssuedAt     time.Time `json:"issued_at"`
}

// Store is the durable backing of a Directory. Save always receives the
// complete set of credentials and must replace the stored set atomically.
type Store interface {
	Load(ctx context.Context) (map[string]Credential, error)
	Save(ctx context.Context, creds map[string]Credential) error
}

// MemoryStore is a Store that keeps nothing across restarts.
type MemoryStore struct{}

// Load implements Store.
func (MemoryStore) Load(context.Context) (map[string]Credential, error) {
	return map[string]Credential{}, nil
}

// Save implements Store.
func (MemoryStore) Save(context.Context, map[string]Credential) error { return nil }
