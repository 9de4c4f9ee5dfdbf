package webhooks

import "time"

// Event types dispatched by the system.
const (
	EventDeviceRegistered        = "device.registered"
	EventDeviceRevoked           = "device.revoked"
	EventTrustAdjusted           = "trust.adjusted"
	EventAlertAccepted           = "alert.accepted"
	EventAlertRejected           = "alert.rejected"
	EventLedgerIntegrityFailed   = "ledger.integrity_failed"
	EventLedgerIntegrityRestored = "ledger.integrity_restored"
)

// Subscription is a receiver URL and the event types it wants.
// An empty Events list receives every event.
type Subscription struct {
	URL    string   `mapstructure:"url"`
	Events []string `mapstructure:"events"`
	Secret string   `mapstructure:"secret"`
}

func (s Subscription) wants(eventType string) bool {
	if len(s.Events) == 0 {
		return true
	}
	for _, e := range s.Events {
		if e == eventType || e == "*" {
			return true
		}
	}
	return false
}

// WebhookEvent is the JSON body posted to a subscription.
type WebhookEvent struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}
