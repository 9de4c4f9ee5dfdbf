// Package threat classifies device alerts and runs the heuristic rule set
// that turns an alert into ordered trust adjustments.
package threat

import "github.com/jmerrifield20/trustmesh/internal/model"

// Finding is a single rule match: a signed trust delta and the reason
// recorded alongside it.
type Finding struct {
	Rule   string  `json:"rule"`
	Reason string  `json:"reason"`
	Delta  float64 `json:"delta"`
}

// Evaluator inspects an alert and returns the adjustments to apply, in order.
type Evaluator interface {
	Evaluate(alert model.Alert) []Finding
}

// Class is the fast-path category of a declared alert type.
type Class int

const (
	// ClassUnknown matches neither the benign nor the malicious set.
	ClassUnknown Class = iota
	ClassBenign
	ClassMalicious
)

func (c Class) String() string {
	switch c {
	case ClassBenign:
		return "benign"
	case ClassMalicious:
		return "malicious"
	default:
		return "unknown"
	}
}

// maliciousTypes are the declared alert types the fast path penalises.
var maliciousTypes = map[string]struct{}{
	"malicious":      {},
	"scan":           {},
	"malicious_scan": {},
	"ddos":           {},
	"packet_drop":    {},
}

// Classify maps a declared alert type to its fast-path class. Matching is exact.
func Classify(alertType string) Class {
	if alertType == "benign" {
		return ClassBenign
	}
	if _, ok := maliciousTypes[alertType]; ok {
		return ClassMalicious
	}
	return ClassUnknown
}
