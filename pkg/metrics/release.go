package metrics

import "time"

// ReleaseSample is one release's contribution to a release-family metric
// request.
type ReleaseSample struct {
	PublishedAt time.Time
	PRCount     int
}

// ReleaseFacts is the fact table a release-family Calculator reduces.
type ReleaseFacts struct {
	Releases []ReleaseSample
}

// ReleaseCalculator mirrors PRCalculator's shape for the release family.
type ReleaseCalculator interface {
	Name() string
	Analyze(facts ReleaseFacts) (Value, bool)
}

// ReleaseRegistry is the metric-identifier -> Calculator table for release
// metrics.
type ReleaseRegistry map[string]ReleaseCalculator

func (r ReleaseRegistry) Has(name string) bool { _, ok := r[name]; return ok }

type releaseCalcFunc struct {
	name string
	fn   func([]ReleaseSample) (Value, bool)
}

func (c releaseCalcFunc) Name() string { return c.name }
func (c releaseCalcFunc) Analyze(facts ReleaseFacts) (Value, bool) {
	return c.fn(facts.Releases)
}

// DefaultReleaseRegistry builds the registered release-family metrics.
// release-count and release-prs have no original_source analogue (the
// filtered pack's Python metric modules only survived for the PR family);
// they're built fresh against spec §3's Release entity (count of releases
// in the bucket; median PRs carried per release).
func DefaultReleaseRegistry() ReleaseRegistry {
	reg := ReleaseRegistry{}

	reg["release-count"] = releaseCalcFunc{name: "release-count", fn: func(rs []ReleaseSample) (Value, bool) {
		if len(rs) == 0 {
			return Missing, false
		}
		return Value{Exists: true, Value: float64(len(rs)), ConfidenceMin: float64(len(rs)), ConfidenceMax: float64(len(rs))}, true
	}}

	reg["release-prs"] = releaseCalcFunc{name: "release-prs", fn: func(rs []ReleaseSample) (Value, bool) {
		if len(rs) == 0 {
			return Missing, false
		}
		var samples []float64
		for _, r := range rs {
			samples = append(samples, float64(r.PRCount))
		}
		return summarize(samples), true
	}}

	reg["release-frequency-days"] = releaseCalcFunc{name: "release-frequency-days", fn: func(rs []ReleaseSample) (Value, bool) {
		if len(rs) < 2 {
			return Missing, false
		}
		sorted := make([]ReleaseSample, len(rs))
		copy(sorted, rs)
		for i := 1; i < len(sorted); i++ {
			for j := i; j > 0 && sorted[j].PublishedAt.Before(sorted[j-1].PublishedAt); j-- {
				sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
			}
		}
		var gaps []float64
		for i := 1; i < len(sorted); i++ {
			gaps = append(gaps, sorted[i].PublishedAt.Sub(sorted[i-1].PublishedAt).Hours()/24)
		}
		return summarize(gaps), true
	}}

	return reg
}
