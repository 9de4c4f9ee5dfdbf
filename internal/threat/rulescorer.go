package threat

import (
	"fmt"
	"strings"

	"github.com/jmerrifield20/trustmesh/internal/model"
)

// Policy holds the tunables of the heuristic rule set.
type Policy struct {
	HighPenalty             float64
	MediumPenalty           float64
	RecoveryRate            float64
	ScanThreshold           int64
	PacketDropThreshold     float64
	ForwardingWarnThreshold float64
}

// DefaultPolicy returns the stock tunables.
func DefaultPolicy() Policy {
	return Policy{
		HighPenalty:             0.4,
		MediumPenalty:           0.2,
		RecoveryRate:            0.05,
		ScanThreshold:           10,
		PacketDropThreshold:     0.5,
		ForwardingWarnThreshold: 0.8,
	}
}

// ruleFunc inspects an alert and returns zero or more Findings if its rule matches.
type ruleFunc func(p Policy, alert model.Alert) []Finding

// RuleBasedEvaluator is the default Evaluator. Every rule runs on every
// alert and the findings are concatenated in rule order.
type RuleBasedEvaluator struct {
	policy Policy
	rules  []ruleFunc
}

// NewRuleBasedEvaluator returns a RuleBasedEvaluator loaded with the default rule set.
func NewRuleBasedEvaluator(p Policy) *RuleBasedEvaluator {
	return &RuleBasedEvaluator{
		policy: p,
		rules: []ruleFunc{
			ruleMaliciousKeyword,
			ruleBenignClass,
			ruleScanCount,
			ruleForwardingRate,
		},
	}
}

// Evaluate implements Evaluator.
func (e *RuleBasedEvaluator) Evaluate(alert model.Alert) []Finding {
	findings := []Finding{}
	for _, r := range e.rules {
		findings = append(findings, r(e.policy, alert)...)
	}
	return findings
}

// ── Rules ─────────────────────────────────────────────────────────────────────

var maliciousKeywords = []string{"malicious", "malware"}

func ruleMaliciousKeyword(p Policy, alert model.Alert) []Finding {
	text := alert.DetailsText()
	for _, kw := range maliciousKeywords {
		if strings.Contains(text, kw) {
			return []Finding{{Rule: "malicious_keyword", Reason: "malicious_keyword", Delta: -p.HighPenalty}}
		}
	}
	return nil
}

var benignClasses = map[string]struct{}{"info": {}, "benign": {}, "heartbeat": {}}

func ruleBenignClass(p Policy, alert model.Alert) []Finding {
	if _, ok := benignClasses[strings.ToLower(alert.Type)]; !ok {
		return nil
	}
	return []Finding{{Rule: "benign_event", Reason: "benign_event", Delta: p.RecoveryRate}}
}

func ruleScanCount(p Policy, alert model.Alert) []Finding {
	n := alert.Metrics.ScanCount
	if n < p.ScanThreshold {
		return nil
	}
	return []Finding{{Rule: "scan_count", Reason: fmt.Sprintf("scan_count=%d", n), Delta: -p.HighPenalty}}
}

// ruleForwardingRate scores the fraction of sent packets that were not
// dropped. It only fires when the device reported sending anything.
func ruleForwardingRate(p Policy, alert model.Alert) []Finding {
	sent := alert.Metrics.PacketsSent
	if sent <= 0 {
		return nil
	}
	// Subtract in float64: saturated counters would overflow int64.
	rate := (float64(sent) - float64(alert.Metrics.PacketsFailed)) / float64(sent)
	reason := fmt.Sprintf("forwarding_rate=%.2f", rate)

	var delta float64
	switch {
	case rate < p.PacketDropThreshold:
		delta = -p.HighPenalty
	case rate < p.ForwardingWarnThreshold:
		delta = -p.MediumPenalty
	default:
		delta = p.RecoveryRate
	}
	return []Finding{{Rule: "forwarding_rate", Reason: reason, Delta: delta}}
}
