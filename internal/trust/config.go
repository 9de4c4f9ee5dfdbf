package trust

import (
	"fmt"

	"github.com/jmerrifield20/trustmesh/internal/threat"
)

// Config holds the tunables of the Engine. Zero-valued fields take their
// defaults in withDefaults, except HardRevokeThreshold whose default is zero.
// A zero therefore cannot be configured explicitly; Validate rejects it.
type Config struct {
	// InitialTrust is the score given to a freshly registered device.
	InitialTrust float64

	// Fast path (ReceiveAlert).
	BenignRecovery      float64
	AlertPenalty        float64
	SoftRevokeThreshold float64

	// Evaluation pipeline (EvaluateAndUpdate).
	HighPenalty             float64
	MediumPenalty           float64
	RecoveryRate            float64
	ScanThreshold           int64
	PacketDropThreshold     float64
	ForwardingWarnThreshold float64
	HardRevokeThreshold     float64
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	p := threat.DefaultPolicy()
	return Config{
		InitialTrust:            0.5,
		BenignRecovery:          0.05,
		AlertPenalty:            0.3,
		SoftRevokeThreshold:     0.1,
		HighPenalty:             p.HighPenalty,
		MediumPenalty:           p.MediumPenalty,
		RecoveryRate:            p.RecoveryRate,
		ScanThreshold:           p.ScanThreshold,
		PacketDropThreshold:     p.PacketDropThreshold,
		ForwardingWarnThreshold: p.ForwardingWarnThreshold,
		HardRevokeThreshold:     0.0,
	}
}

// Validate checks a fully specified Config. Every tunable except
// HardRevokeThreshold must be positive, scores and rates must lie in [0, 1],
// and the soft threshold must sit strictly above the hard one.
func (c Config) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"initial", c.InitialTrust},
		{"benign_recovery", c.BenignRecovery},
		{"alert_penalty", c.AlertPenalty},
		{"soft_revoke_threshold", c.SoftRevokeThreshold},
		{"high_penalty", c.HighPenalty},
		{"medium_penalty", c.MediumPenalty},
		{"recovery_rate", c.RecoveryRate},
		{"scan_threshold", float64(c.ScanThreshold)},
		{"packet_drop_threshold", c.PacketDropThreshold},
		{"forwarding_warn_threshold", c.ForwardingWarnThreshold},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("trust.%s must be positive, got %v", p.name, p.v)
		}
	}

	unit := []struct {
		name string
		v    float64
	}{
		{"initial", c.InitialTrust},
		{"soft_revoke_threshold", c.SoftRevokeThreshold},
		{"hard_revoke_threshold", c.HardRevokeThreshold},
		{"packet_drop_threshold", c.PacketDropThreshold},
		{"forwarding_warn_threshold", c.ForwardingWarnThreshold},
	}
	for _, u := range unit {
		if u.v < 0 || u.v > 1 {
			return fmt.Errorf("trust.%s must be within [0, 1], got %v", u.name, u.v)
		}
	}

	if c.SoftRevokeThreshold <= c.HardRevokeThreshold {
		return fmt.Errorf("trust.soft_revoke_threshold (%v) must be above trust.hard_revoke_threshold (%v)",
			c.SoftRevokeThreshold, c.HardRevokeThreshold)
	}
	if c.PacketDropThreshold > c.ForwardingWarnThreshold {
		return fmt.Errorf("trust.packet_drop_threshold (%v) is above trust.forwarding_warn_threshold (%v)",
			c.PacketDropThreshold, c.ForwardingWarnThreshold)
	}
	return nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InitialTrust == 0 {
		c.InitialTrust = d.InitialTrust
	}
	if c.BenignRecovery == 0 {
		c.BenignRecovery = d.BenignRecovery
	}
	if c.AlertPenalty == 0 {
		c.AlertPenalty = d.AlertPenalty
	}
	if c.SoftRevokeThreshold == 0 {
		c.SoftRevokeThreshold = d.SoftRevokeThreshold
	}
	if c.HighPenalty == 0 {
		c.HighPenalty = d.HighPenalty
	}
	if c.MediumPenalty == 0 {
		c.MediumPenalty = d.MediumPenalty
	}
	if c.RecoveryRate == 0 {
		c.RecoveryRate = d.RecoveryRate
	}
	if c.ScanThreshold == 0 {
		c.ScanThreshold = d.ScanThreshold
	}
	if c.PacketDropThreshold == 0 {
		c.PacketDropThreshold = d.PacketDropThreshold
	}
	if c.ForwardingWarnThreshold == 0 {
		c.ForwardingWarnThreshold = d.ForwardingWarnThreshold
	}
	return c
}

// Policy returns the heuristic rule tunables carried by c.
func (c Config) Policy() threat.Policy {
	return threat.Policy{
		HighPenalty:             c.HighPenalty,
		MediumPenalty:           c.MediumPenalty,
		RecoveryRate:            c.RecoveryRate,
		ScanThreshold:           c.ScanThreshold,
		PacketDropThreshold:     c.PacketDropThreshold,
		ForwardingWarnThreshold: c.ForwardingWarnThreshold,
	}
}
