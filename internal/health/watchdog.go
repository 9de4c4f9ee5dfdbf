// Package health periodically re-verifies the ledger chain and reports
// integrity transitions through callbacks.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/jmerrifield20/trustmesh/internal/ledger"
	"github.com/jmerrifield20/trustmesh/internal/webhooks"
	"go.uber.org/zap"
)

// Config holds watchdog configuration.
type Config struct {
	CheckInterval time.Duration
	CheckTimeout  time.Duration
	// FailThreshold is the number of consecutive broken verifications
	// before the service is reported as not serving.
	FailThreshold int
}

// Verifier walks a chain and reports whether it is intact.
type Verifier interface {
	Verify(ctx context.Context) error
}

// StatusFunc is called on every serving-status transition.
type StatusFunc func(serving bool)

// WebhookDispatchFunc is an optional callback for dispatching integrity events.
type WebhookDispatchFunc func(eventType string, payload map[string]string)

// MetricsRecordFunc is an optional callback for recording check results.
type MetricsRecordFunc func(intact bool)

// Watchdog runs periodic ledger verifications.
type Watchdog struct {
	verifier  Verifier
	cfg       Config
	onStatus  StatusFunc
	onWebhook WebhookDispatchFunc
	onMetrics MetricsRecordFunc
	logger    *zap.Logger

	mu        sync.Mutex
	failCount int
	degraded  bool
}

// New creates a new Watchdog.
func New(v Verifier, cfg Config, logger *zap.Logger) *Watchdog {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 5 * time.Minute
	}
	if cfg.CheckTimeout == 0 {
		cfg.CheckTimeout = 30 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 1
	}
	return &Watchdog{verifier: v, cfg: cfg, logger: logger}
}

// SetStatusFunc configures the serving-status callback.
func (w *Watchdog) SetStatusFunc(fn StatusFunc) {
	w.onStatus = fn
}

// SetWebhookDispatch configures the webhook dispatch callback.
func (w *Watchdog) SetWebhookDispatch(fn WebhookDispatchFunc) {
	w.onWebhook = fn
}

// SetMetricsRecord configures the metrics recording callback.
func (w *Watchdog) SetMetricsRecord(fn MetricsRecordFunc) {
	w.onMetrics = fn
}

// Start runs the check loop until ctx is done.
func (w *Watchdog) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, w.cfg.CheckTimeout)
			w.Check(checkCtx)
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

// Check verifies the chain once and applies any status transition.
// Storage errors are logged and leave the status untouched.
func (w *Watchdog) Check(ctx context.Context) {
	verr := w.verifier.Verify(ctx)
	intact, err := ledger.Valid(verr)
	if err != nil {
		w.logger.Warn("watchdog: ledger unreadable", zap.Error(err))
		return
	}
	if w.onMetrics != nil {
		w.onMetrics(intact)
	}

	w.mu.Lock()
	wasDegraded := w.degraded
	if intact {
		w.failCount = 0
		w.degraded = false
	} else {
		w.failCount++
		if w.failCount >= w.cfg.FailThreshold {
			w.degraded = true
		}
	}
	count := w.failCount
	nowDegraded := w.degraded
	w.mu.Unlock()

	switch {
	case nowDegraded && !wasDegraded:
		w.logger.Error("watchdog: ledger integrity FAILED",
			zap.Int("fail_count", count),
			zap.Error(verr),
		)
		w.setStatus(false)
		w.dispatch(webhooks.EventLedgerIntegrityFailed, map[string]string{"error": verr.Error()})
	case !nowDegraded && wasDegraded:
		w.logger.Info("watchdog: ledger integrity restored")
		w.setStatus(true)
		w.dispatch(webhooks.EventLedgerIntegrityRestored, map[string]string{})
	case !intact:
		w.logger.Warn("watchdog: ledger verification failed",
			zap.Int("fail_count", count),
			zap.Error(verr),
		)
	}
}

// Degraded reports whether the last transition marked the ledger as broken.
func (w *Watchdog) Degraded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.degraded
}

func (w *Watchdog) setStatus(serving bool) {
	if w.onStatus != nil {
		w.onStatus(serving)
	}
}

func (w *Watchdog) dispatch(eventType string, payload map[string]string) {
	if w.onWebhook != nil {
		w.onWebhook(eventType, payload)
	}
}
