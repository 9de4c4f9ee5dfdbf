package trust

import (
	"time"

	"go.uber.org/zap"
)

// EventKind names a decision taken by the Engine.
type EventKind string

const (
	EventRegistered    EventKind = "registered"
	EventAlertAccepted EventKind = "alert_accepted"
	EventAlertRejected EventKind = "alert_rejected"
	EventTrustAdjusted EventKind = "trust_adjusted"
	EventRevoked       EventKind = "revoked"
)

// Event describes one decision. Fields that do not apply to a kind are zero.
type Event struct {
	Kind      EventKind
	DeviceID  string
	AlertType string
	Old       float64
	New       float64
	Reason    string
	Time      time.Time
}

// EventSink receives every Event the Engine emits. Emit is called while the
// device lock is held and must not call back into the Engine.
type EventSink interface {
	Emit(Event)
}

// NopSink discards events.
type NopSink struct{}

// Emit implements EventSink.
func (NopSink) Emit(Event) {}

// LogSink writes events as structured zap entries.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink returns a LogSink writing to logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit implements EventSink.
func (s *LogSink) Emit(ev Event) {
	fields := []zap.Field{zap.String("device_id", ev.DeviceID)}
	if ev.AlertType != "" {
		fields = append(fields, zap.String("alert_type", ev.AlertType))
	}
	if ev.Reason != "" {
		fields = append(fields, zap.String("reason", ev.Reason))
	}

	switch ev.Kind {
	case EventRegistered:
		s.logger.Info("device registered", append(fields, zap.Float64("trust", ev.New))...)
	case EventAlertAccepted:
		s.logger.Info("alert accepted", append(fields, zap.Float64("old", ev.Old), zap.Float64("new", ev.New))...)
	case EventAlertRejected:
		s.logger.Warn("alert rejected", fields...)
	case EventTrustAdjusted:
		s.logger.Info("trust adjusted", append(fields, zap.Float64("old", ev.Old), zap.Float64("new", ev.New))...)
	case EventRevoked:
		s.logger.Warn("device revoked", append(fields, zap.Float64("trust", ev.New))...)
	default:
		s.logger.Debug("trust event", append(fields, zap.String("kind", string(ev.Kind)))...)
	}
}

// FanOut delivers every event to each sink in order.
type FanOut []EventSink

// Emit implements EventSink.
func (f FanOut) Emit(ev Event) {
	for _, s := range f {
		s.Emit(ev)
	}
}
