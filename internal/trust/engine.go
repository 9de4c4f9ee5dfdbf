// Package trust implements the Trust Engine: device registration, alert
// intake, heuristic evaluation, trust-score arithmetic and revocation.
//
// Every state change is appended to the ledger before it becomes visible
// in memory, and every decision is reported to an EventSink. Operations on
// one device are serialised by a per-device lock; the ledger orders
// appends across devices.
package trust

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmerrifield20/trustmesh/internal/credential"
	"github.com/jmerrifield20/trustmesh/internal/ledger"
	"github.com/jmerrifield20/trustmesh/internal/model"
	"github.com/jmerrifield20/trustmesh/internal/threat"
	"go.uber.org/zap"
)

// ErrUnknownDevice is returned by operations that require a registered device.
var ErrUnknownDevice = errors.New("unknown device")

// Reason explains why an alert was rejected.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonUnknownDevice    Reason = "unknown_device"
	ReasonRevokedDevice    Reason = "revoked_device"
	ReasonUnknownAlertType Reason = "unknown_alert_type"
	// ReasonTrustCollapsed is reported when the alert itself was applied but
	// pushed trust to or below the soft threshold and the device was revoked.
	ReasonTrustCollapsed Reason = "trust_collapsed"
)

// Outcome is the result of ReceiveAlert.
type Outcome struct {
	Accepted bool   `json:"accepted"`
	Reason   Reason `json:"reason,omitempty"`
}

func accepted() Outcome         { return Outcome{Accepted: true} }
func rejected(r Reason) Outcome { return Outcome{Reason: r} }

// Engine ties the credential directory, the ledger and the heuristic rule set
// together. Construct with NewEngine.
type Engine struct {
	cfg       Config
	dir       *credential.Directory
	ledger    ledger.Ledger
	evaluator threat.Evaluator
	sink      EventSink
	logger    *zap.Logger
	locks     *deviceLocks
	now       func() time.Time

	mu      sync.RWMutex
	trust   map[string]float64
	revoked map[string]struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink sets the event sink. The default discards events.
func WithSink(s EventSink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithEvaluator replaces the heuristic rule set used by EvaluateAndUpdate.
func WithEvaluator(ev threat.Evaluator) Option {
	return func(e *Engine) { e.evaluator = ev }
}

// NewEngine creates an Engine. Zero-valued Config fields take their defaults.
func NewEngine(cfg Config, dir *credential.Directory, l ledger.Ledger, logger *zap.Logger, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:       cfg,
		dir:       dir,
		ledger:    l,
		evaluator: threat.NewRuleBasedEvaluator(cfg.Policy()),
		sink:      NopSink{},
		logger:    logger,
		locks:     newDeviceLocks(),
		now:       time.Now,
		trust:     make(map[string]float64),
		revoked:   make(map[string]struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Register issues a credential for deviceID and starts tracking its trust.
// Re-registering a device replaces its credential, clears its revocation and
// resets its trust to the initial value. If the register block cannot be
// appended, the previous credential is put back so the directory never holds
// an issuance the ledger does not record.
func (e *Engine) Register(ctx context.Context, deviceID, publicKey string) (*credential.Credential, error) {
	unlock := e.locks.lock(deviceID)
	defer unlock()

	prev, _ := e.dir.Get(deviceID)
	cred, err := e.dir.Register(ctx, deviceID, publicKey)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", deviceID, err)
	}
	if err := e.addDeviceLocked(ctx, deviceID); err != nil {
		if rerr := e.dir.Reset(ctx, deviceID, prev); rerr != nil {
			e.logger.Error("credential rollback failed",
				zap.String("device_id", deviceID),
				zap.String("credential_id", cred.CredentialID),
				zap.Error(rerr),
			)
		}
		return nil, err
	}
	return cred, nil
}

// AddDevice starts tracking deviceID at the initial trust without issuing a
// credential. Alerts from such a device are rejected until it is registered,
// because the directory reports unknown devices as revoked.
func (e *Engine) AddDevice(ctx context.Context, deviceID string) error {
	unlock := e.locks.lock(deviceID)
	defer unlock()
	return e.addDeviceLocked(ctx, deviceID)
}

func (e *Engine) addDeviceLocked(ctx context.Context, deviceID string) error {
	initial := e.cfg.InitialTrust
	if _, err := e.ledger.Append(ctx, map[string]any{
		"event":     "register",
		"device_id": deviceID,
		"trust":     initial,
	}); err != nil {
		return fmt.Errorf("log register %s: %w", deviceID, err)
	}

	e.mu.Lock()
	e.trust[deviceID] = initial
	delete(e.revoked, deviceID)
	e.mu.Unlock()

	e.emit(Event{Kind: EventRegistered, DeviceID: deviceID, New: initial})
	return nil
}

// ReceiveAlert runs the fast-path classifier. A benign alert raises trust by
// BenignRecovery; an alert of a malicious type lowers it by AlertPenalty and
// revokes the device once trust is at or below SoftRevokeThreshold. Every
// other outcome is a rejection without mutation. The error is non-nil only
// when the ledger or the credential store failed.
func (e *Engine) ReceiveAlert(ctx context.Context, alert model.Alert) (Outcome, error) {
	id := alert.DeviceID
	if id == "" {
		return e.reject(alert, ReasonUnknownDevice), nil
	}

	unlock := e.locks.lock(id)
	defer unlock()

	old, ok := e.TrustOf(id)
	if !ok {
		return e.reject(alert, ReasonUnknownDevice), nil
	}
	if e.dir.IsRevoked(id) {
		return e.reject(alert, ReasonRevokedDevice), nil
	}

	var (
		next  float64
		event string
	)
	switch threat.Classify(alert.Type) {
	case threat.ClassBenign:
		next = clamp(old + e.cfg.BenignRecovery)
		event = "benign_alert"
	case threat.ClassMalicious:
		next = clamp(old - e.cfg.AlertPenalty)
		event = alert.Type + "_alert"
	default:
		return e.reject(alert, ReasonUnknownAlertType), nil
	}

	if _, err := e.ledger.Append(ctx, map[string]any{
		"event":     event,
		"device_id": id,
		"trust":     next,
	}); err != nil {
		return Outcome{}, fmt.Errorf("log %s for %s: %w", event, id, err)
	}
	e.setTrust(id, next)
	e.emit(Event{Kind: EventAlertAccepted, DeviceID: id, AlertType: alert.Type, Old: old, New: next, Reason: event})

	if threat.Classify(alert.Type) == threat.ClassMalicious && next <= e.cfg.SoftRevokeThreshold {
		if _, err := e.revokeLocked(ctx, id); err != nil {
			return Outcome{}, err
		}
		return e.reject(alert, ReasonTrustCollapsed), nil
	}
	return accepted(), nil
}

// EvaluateAndUpdate applies every heuristic finding for alert to deviceID
// through AdjustTrust, in order, then revokes the device if trust is at or
// below HardRevokeThreshold. Malformed metrics count as zero. It returns
// ErrUnknownDevice, without mutating anything, for an untracked device.
func (e *Engine) EvaluateAndUpdate(ctx context.Context, deviceID string, alert model.Alert) error {
	unlock := e.locks.lock(deviceID)
	defer unlock()

	if _, ok := e.TrustOf(deviceID); !ok {
		return fmt.Errorf("evaluate %q: %w", deviceID, ErrUnknownDevice)
	}

	for _, f := range e.evaluator.Evaluate(alert) {
		if _, err := e.adjustLocked(ctx, deviceID, f.Delta, f.Reason); err != nil {
			return err
		}
	}

	if score, _ := e.TrustOf(deviceID); score <= e.cfg.HardRevokeThreshold {
		if _, err := e.revokeLocked(ctx, deviceID); err != nil {
			return err
		}
	}
	return nil
}

// AdjustTrust adds delta to the trust of deviceID, clamped to [0, 1], and
// records a trust_update block. It returns the new score.
func (e *Engine) AdjustTrust(ctx context.Context, deviceID string, delta float64, reason string) (float64, error) {
	unlock := e.locks.lock(deviceID)
	defer unlock()

	if _, ok := e.TrustOf(deviceID); !ok {
		return 0, fmt.Errorf("adjust %q: %w", deviceID, ErrUnknownDevice)
	}
	return e.adjustLocked(ctx, deviceID, delta, reason)
}

func (e *Engine) adjustLocked(ctx context.Context, deviceID string, delta float64, reason string) (float64, error) {
	old, _ := e.TrustOf(deviceID)
	next := clamp(old + delta)

	if _, err := e.ledger.Append(ctx, map[string]any{
		"event":     "trust_update",
		"device_id": deviceID,
		"old":       old,
		"new":       next,
		"reason":    reason,
	}); err != nil {
		return old, fmt.Errorf("log trust_update for %s: %w", deviceID, err)
	}
	e.setTrust(deviceID, next)
	e.emit(Event{Kind: EventTrustAdjusted, DeviceID: deviceID, Old: old, New: next, Reason: reason})
	return next, nil
}

// RevokeDevice revokes the credential of deviceID. It reports true only when
// this call changed the credential from valid to revoked.
func (e *Engine) RevokeDevice(ctx context.Context, deviceID string) (bool, error) {
	unlock := e.locks.lock(deviceID)
	defer unlock()
	return e.revokeLocked(ctx, deviceID)
}

// revokeLocked commits the revocation to the directory before the ledger.
// A failed append therefore leaves the device revoked but unlogged; Restore
// picks such devices up from the directory.
func (e *Engine) revokeLocked(ctx context.Context, deviceID string) (bool, error) {
	changed, err := e.dir.Revoke(ctx, deviceID)
	if err != nil {
		return false, fmt.Errorf("revoke %s: %w", deviceID, err)
	}
	if !changed {
		return false, nil
	}

	e.mu.Lock()
	e.revoked[deviceID] = struct{}{}
	score := e.trust[deviceID]
	e.mu.Unlock()

	if _, err := e.ledger.Append(ctx, map[string]any{
		"event":     "revoke",
		"device_id": deviceID,
	}); err != nil {
		return true, fmt.Errorf("log revoke %s: %w", deviceID, err)
	}
	e.emit(Event{Kind: EventRevoked, DeviceID: deviceID, New: score})
	return true, nil
}

// TrustOf returns the current score of deviceID.
func (e *Engine) TrustOf(deviceID string) (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	score, ok := e.trust[deviceID]
	return score, ok
}

// ListDevices returns every tracked device ordered by ID. A device is
// reported revoked if either the local revoked set or the directory says so.
func (e *Engine) ListDevices() []model.DeviceStatus {
	e.mu.RLock()
	out := make([]model.DeviceStatus, 0, len(e.trust))
	for id, score := range e.trust {
		_, local := e.revoked[id]
		out = append(out, model.DeviceStatus{DeviceID: id, Trust: score, Revoked: local})
	}
	e.mu.RUnlock()

	for i := range out {
		if !out[i].Revoked {
			out[i].Revoked = e.dir.IsRevoked(out[i].DeviceID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// Status returns the query projection of one device.
func (e *Engine) Status(deviceID string) (model.DeviceStatus, bool) {
	e.mu.RLock()
	score, ok := e.trust[deviceID]
	_, local := e.revoked[deviceID]
	e.mu.RUnlock()
	if !ok {
		return model.DeviceStatus{}, false
	}
	return model.DeviceStatus{
		DeviceID: deviceID,
		Trust:    score,
		Revoked:  local || e.dir.IsRevoked(deviceID),
	}, true
}

// Export returns the full ledger as display projections.
func (e *Engine) Export(ctx context.Context) ([]ledger.View, error) {
	return e.ledger.Export(ctx)
}

// VerifyLedger reports whether the ledger chain is intact. The error is
// non-nil only when the ledger could not be read.
func (e *Engine) VerifyLedger(ctx context.Context) (bool, error) {
	return ledger.Valid(e.ledger.Verify(ctx))
}

// LogTestResult records an externally reported test outcome.
func (e *Engine) LogTestResult(ctx context.Context, r model.TestResult) (*ledger.Block, error) {
	b, err := e.ledger.Append(ctx, map[string]any{
		"event":  "test_result",
		"test":   r.Test,
		"status": r.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("log test result: %w", err)
	}
	return b, nil
}

// replayRecord is the union of the payload fields the engine writes.
type replayRecord struct {
	Event    string   `json:"event"`
	DeviceID string   `json:"device_id"`
	Trust    *float64 `json:"trust"`
	New      *float64 `json:"new"`
}

// Restore rebuilds trust scores and the revoked set by replaying the ledger.
// It is meant for persistent ledgers at startup, before the engine serves
// traffic. Devices unknown to the directory are still restored; the
// directory keeps rejecting their alerts.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	views, err := e.ledger.Export(ctx)
	if err != nil {
		return 0, fmt.Errorf("read ledger: %w", err)
	}

	trust := make(map[string]float64)
	revoked := make(map[string]struct{})
	for _, v := range views {
		var rec replayRecord
		if err := v.Decode(&rec); err != nil || rec.DeviceID == "" {
			continue
		}
		switch {
		case rec.Event == "register" && rec.Trust != nil:
			trust[rec.DeviceID] = *rec.Trust
			delete(revoked, rec.DeviceID)
		case rec.Event == "trust_update" && rec.New != nil:
			trust[rec.DeviceID] = *rec.New
		case rec.Event == "revoke":
			revoked[rec.DeviceID] = struct{}{}
		case strings.HasSuffix(rec.Event, "_alert") && rec.Trust != nil:
			trust[rec.DeviceID] = *rec.Trust
		}
	}

	// The directory is authoritative for revocation, including revocations
	// whose ledger block was never written.
	for _, c := range e.dir.List() {
		if _, tracked := trust[c.DeviceID]; tracked && c.Revoked {
			revoked[c.DeviceID] = struct{}{}
		}
	}

	e.mu.Lock()
	e.trust = trust
	e.revoked = revoked
	e.mu.Unlock()

	e.logger.Info("trust state restored from ledger",
		zap.Int("blocks", len(views)),
		zap.Int("devices", len(trust)),
		zap.Int("revoked", len(revoked)),
	)
	return len(trust), nil
}

func (e *Engine) setTrust(deviceID string, score float64) {
	e.mu.Lock()
	e.trust[deviceID] = score
	e.mu.Unlock()
}

func (e *Engine) reject(alert model.Alert, r Reason) Outcome {
	e.emit(Event{Kind: EventAlertRejected, DeviceID: alert.DeviceID, AlertType: alert.Type, Reason: string(r)})
	return rejected(r)
}

func (e *Engine) emit(ev Event) {
	ev.Time = e.now().UTC()
	e.sink.Emit(ev)
}

// clamp bounds a score to [0, 1].
func clamp(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
