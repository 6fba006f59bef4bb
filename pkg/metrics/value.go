// Package metrics defines the pure, per-metric calculators the planner
// (pkg/planner) dispatches against PR, release, and JIRA fact tables.
// Generalized from the teacher's interface-based extension points
// (internal/interfaces) in place of the dynamically-typed numeric arrays
// the original Python source passed around.
package metrics

// Value is a measurement plus the confidence interval around it, spec §3's
// metric-value entity. A Value that does not exist (no contributing fact)
// always reports ConfidenceScore() == 0.
type Value struct {
	Exists        bool
	Value         float64
	ConfidenceMin float64
	ConfidenceMax float64
}

// Missing is the canonical zero-value Value for a metric with no
// contributing facts (spec §8's empty-window edge case: value=null,
// confidence_score=0).
var Missing = Value{}

// ConfidenceScore maps the confidence interval width relative to the value
// onto a 0-100 scale: 100 is maximally confident (zero-width interval),
// 0 is either nonexistent or maximally uncertain.
func (v Value) ConfidenceScore() float64 {
	if !v.Exists || v.Value == 0 {
		return 0
	}
	eps := 100 * (v.ConfidenceMax - v.ConfidenceMin) / v.Value
	switch {
	case eps > 100:
		eps = 100
	case eps < 0:
		eps = 0
	}
	return 100 - eps
}
