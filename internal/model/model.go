// Package model holds the wire records exchanged with alert producers,
// registration clients and query consumers.
package model

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Alert is a security observation about one device.
type Alert struct {
	DeviceID string `json:"device_id"`
	Type     string `json:"type"`
	// Details is free-form; it is only ever scanned as text.
	Details any     `json:"details,omitempty"`
	Metrics Metrics `json:"metrics"`
}

// DetailsText returns the lower-cased textual form of Details.
func (a Alert) DetailsText() string {
	switch d := a.Details.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(d)
	}
	raw, err := json.Marshal(a.Details)
	if err != nil {
		return ""
	}
	return strings.ToLower(string(raw))
}

// Metrics are the counters an alert producer may attach. Values that are
// missing or not numeric decode as zero.
type Metrics struct {
	ScanCount     int64 `json:"scan_count"`
	PacketsSent   int64 `json:"packets_sent"`
	PacketsFailed int64 `json:"packets_failed"`
}

// UnmarshalJSON decodes leniently: it never fails on a malformed value.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	*m = Metrics{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// null, arrays and scalars all mean "no metrics".
		return nil
	}
	m.ScanCount = coerceInt(raw["scan_count"])
	m.PacketsSent = coerceInt(raw["packets_sent"])
	m.PacketsFailed = coerceInt(raw["packets_failed"])
	return nil
}

// coerceInt reads a JSON number or numeric string, truncating fractions.
// Values outside the int64 range saturate at its bounds; anything that is
// not a number reads as zero.
func coerceInt(raw json.RawMessage) int64 {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return 0
	}
	if text[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		text = strings.TrimSpace(s)
	}

	// ParseInt saturates on overflow and keeps full precision below it.
	if n, err := strconv.ParseInt(text, 10, 64); err == nil || errors.Is(err, strconv.ErrRange) {
		return n
	}

	f, err := strconv.ParseFloat(text, 64)
	switch {
	case errors.Is(err, strconv.ErrRange):
		// f is ±Inf on overflow or ±0 on underflow.
	case err != nil, math.IsNaN(f), math.IsInf(f, 0):
		return 0
	}
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

// RegisterRequest is the payload for enrolling a device.
type RegisterRequest struct {
	DeviceID  string `json:"device_id"`
	PublicKey string `json:"public_key"`
}

// DeviceStatus is the query projection of one device.
type DeviceStatus struct {
	DeviceID string  `json:"device_id"`
	Trust    float64 `json:"trust"`
	Revoked  bool    `json:"revoked"`
}

// TestResult is an externally reported test outcome recorded in the ledger.
type TestResult struct {
	Test   string `json:"test"`
	Status string `json:"status"`
}
