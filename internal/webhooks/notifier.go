package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/trustmesh/internal/trust"
	"go.uber.org/zap"
)

// SignatureHeader carries the HMAC-SHA256 of the body when a subscription has a secret.
const SignatureHeader = "X-Trustmesh-Signature"

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(success bool)

// Notifier posts engine events to statically configured subscriptions.
// It implements trust.EventSink; deliveries run in the background so Emit
// never blocks the caller.
type Notifier struct {
	subs       []Subscription
	httpClient *http.Client
	delays     []time.Duration // wait before each attempt
	onMetrics  MetricsRecorder
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNotifier creates a Notifier for the given subscriptions.
func NewNotifier(subs []Subscription, logger *zap.Logger) *Notifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &Notifier{
		subs:       subs,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		delays:     []time.Duration{0, 1 * time.Second, 5 * time.Second},
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetMetricsRecorder configures the metrics callback.
func (n *Notifier) SetMetricsRecorder(fn MetricsRecorder) {
	n.onMetrics = fn
}

// Emit implements trust.EventSink.
func (n *Notifier) Emit(ev trust.Event) {
	eventType, ok := eventTypes[ev.Kind]
	if !ok {
		return
	}
	payload := map[string]string{"device_id": ev.DeviceID}
	if ev.AlertType != "" {
		payload["alert_type"] = ev.AlertType
	}
	if ev.Reason != "" {
		payload["reason"] = ev.Reason
	}
	switch ev.Kind {
	case trust.EventTrustAdjusted:
		payload["old"] = formatScore(ev.Old)
		payload["new"] = formatScore(ev.New)
	case trust.EventRegistered, trust.EventAlertAccepted:
		payload["trust"] = formatScore(ev.New)
	}
	n.Dispatch(eventType, payload)
}

var eventTypes = map[trust.EventKind]string{
	trust.EventRegistered:    EventDeviceRegistered,
	trust.EventRevoked:       EventDeviceRevoked,
	trust.EventTrustAdjusted: EventTrustAdjusted,
	trust.EventAlertAccepted: EventAlertAccepted,
	trust.EventAlertRejected: EventAlertRejected,
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Dispatch fans out an event to every matching subscription.
func (n *Notifier) Dispatch(eventType string, payload map[string]string) {
	event := WebhookEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	for _, sub := range n.subs {
		if !sub.wants(eventType) {
			continue
		}
		n.wg.Add(1)
		go func(sub Subscription) {
			defer n.wg.Done()
			n.deliver(sub, event)
		}(sub)
	}
}

// Close abandons pending retries and waits for in-flight deliveries.
func (n *Notifier) Close() {
	n.cancel()
	n.wg.Wait()
}

// Wait blocks until every delivery dispatched so far has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// deliver sends the event to a single subscription with retries.
func (n *Notifier) deliver(sub Subscription, event WebhookEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("webhook: marshal event", zap.Error(err))
		return
	}

	var signature string
	if sub.Secret != "" {
		signature = Sign(body, sub.Secret)
	}

	for attempt, delay := range n.delays {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-n.ctx.Done():
				return
			}
		}

		success, errMsg := n.doDelivery(n.ctx, sub.URL, event.ID, body, signature)
		if n.onMetrics != nil {
			n.onMetrics(success)
		}
		if success {
			return
		}

		n.logger.Warn("webhook: delivery failed",
			zap.String("url", sub.URL),
			zap.String("event", event.Type),
			zap.Int("attempt", attempt+1),
			zap.String("error", errMsg),
		)
	}
}

// doDelivery performs a single HTTP POST delivery.
func (n *Notifier) doDelivery(ctx context.Context, url, id string, body []byte, signature string) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Trustmesh-Delivery", id)
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return true, ""
}

// Sign computes the HMAC-SHA256 signature of body in the header format.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
