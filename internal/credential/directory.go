package credential

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Directory issues and revokes device credentials.
// A single mutex covers both the in-memory map and the store rewrite, so
// concurrent registrations and revocations never race on the backing store.
type Directory struct {
	mu     sync.RWMutex
	creds  map[string]Credential
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// Open loads every credential from store and returns a ready Directory.
func Open(ctx context.Context, store Store, logger *zap.Logger) (*Directory, error) {
	creds, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %v", ErrPersistence, err)
	}
	if creds == nil {
		creds = make(map[string]Credential)
	}
	logger.Info("credential directory loaded", zap.Int("credentials", len(creds)))
	return &Directory{creds: creds, store: store, logger: logger, now: time.Now}, nil
}

// Register creates or replaces the credential for deviceID. Re-registration
// clears any prior revocation.
func (d *Directory) Register(ctx context.Context, deviceID, publicKey string) (*Credential, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cred := Credential{
		CredentialID: uuid.New().String(),
		DeviceID:     deviceID,
		PublicKey:    publicKey,
		IssuedAt:     d.now().UTC().Truncate(time.Microsecond),
	}

	prev, existed := d.creds[deviceID]
	d.creds[deviceID] = cred
	if err := d.save(ctx); err != nil {
		if existed {
			d.creds[deviceID] = prev
		} else {
			delete(d.creds, deviceID)
		}
		return nil, err
	}

	d.logger.Info("credential issued",
		zap.String("device_id", deviceID),
		zap.String("credential_id", cred.CredentialID),
		zap.Bool("replaced", existed),
	)
	return &cred, nil
}

// Revoke marks the credential of deviceID as revoked. It reports true only
// when the call changed state; unknown and already-revoked devices are no-ops.
func (d *Directory) Revoke(ctx context.Context, deviceID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cred, ok := d.creds[deviceID]
	if !ok || cred.Revoked {
		return false, nil
	}

	cred.Revoked = true
	d.creds[deviceID] = cred
	if err := d.save(ctx); err != nil {
		cred.Revoked = false
		d.creds[deviceID] = cred
		return false, err
	}

	d.logger.Warn("credential revoked", zap.String("device_id", deviceID))
	return true, nil
}

// Reset puts prev back as the credential of deviceID, or forgets deviceID
// when prev is nil. It undoes a Register whose follow-up work failed.
func (d *Directory) Reset(ctx context.Context, deviceID string, prev *Credential) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur, existed := d.creds[deviceID]
	if prev == nil {
		delete(d.creds, deviceID)
	} else {
		d.creds[deviceID] = *prev
	}
	if err := d.save(ctx); err != nil {
		if existed {
			d.creds[deviceID] = cur
		} else {
			delete(d.creds, deviceID)
		}
		return err
	}

	d.logger.Info("credential reset",
		zap.String("device_id", deviceID),
		zap.Bool("restored", prev != nil),
	)
	return nil
}

// IsRevoked reports whether deviceID is revoked. Unknown devices are
// reported as revoked.
func (d *Directory) IsRevoked(deviceID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cred, ok := d.creds[deviceID]
	return !ok || cred.Revoked
}

// Has reports whether deviceID holds a credential, revoked or not.
func (d *Directory) Has(deviceID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.creds[deviceID]
	return ok
}

// PublicKey returns the stored public key of deviceID.
func (d *Directory) PublicKey(deviceID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cred, ok := d.creds[deviceID]
	return cred.PublicKey, ok
}

// Get returns a copy of the credential of deviceID.
func (d *Directory) Get(deviceID string) (*Credential, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cred, ok := d.creds[deviceID]
	if !ok {
		return nil, false
	}
	return &cred, true
}

// List returns every credential ordered by device ID.
func (d *Directory) List() []Credential {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Credential, 0, len(d.creds))
	for _, c := range d.creds {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// save rewrites the whole store. Callers must hold d.mu.
func (d *Directory) save(ctx context.Context) error {
	if err := d.store.Save(ctx, maps.Clone(d.creds)); err != nil {
		d.logger.Error("credential store save failed", zap.Error(err))
		return fmt.Errorf("%w: save: %v", ErrPersistence, err)
	}
	return nil
}
