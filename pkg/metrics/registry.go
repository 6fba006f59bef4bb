package metrics

import "sort"

// Family identifies which of the three metric registries a name belongs
// to, the routing key the planner's triage step uses (spec §4.1).
type Family string

const (
	FamilyPR      Family = "pr"
	FamilyRelease Family = "release"
	FamilyJIRA    Family = "jira"
)

// quantile returns the p-th quantile (0 <= p <= 1) of samples using
// linear interpolation between closest ranks. samples is sorted in place;
// callers pass a copy if the original order matters.
func quantile(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sort.Float64s(samples)
	if len(samples) == 1 {
		return samples[0]
	}
	pos := p * float64(len(samples)-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= len(samples) {
		return samples[lo]
	}
	frac := pos - float64(lo)
	return samples[lo]*(1-frac) + samples[hi]*frac
}

// summarize reduces a set of per-fact samples (already in the metric's
// natural unit) to a Value: the median as the point estimate, and the
// interquartile range [p25, p75] as the confidence bound. Bootstrap
// resampling (the teacher's Python ancestor's approach) is not replicated;
// IQR is a cheap, deterministic stand-in that still narrows as the sample
// set agrees with itself, which is the property ConfidenceScore rewards.
func summarize(samples []float64) Value {
	if len(samples) == 0 {
		return Missing
	}
	cp := make([]float64, len(samples))
	copy(cp, samples)
	sort.Float64s(cp)
	return Value{
		Exists:        true,
		Value:         quantile(cp, 0.5),
		ConfidenceMin: quantile(cp, 0.25),
		ConfidenceMax: quantile(cp, 0.75),
	}
}
