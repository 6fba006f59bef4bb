package metrics

import "time"

// JIRASample is one issue's contribution to a JIRA-family metric request.
// JIRA ingestion itself is out of this repository's mining scope (the
// component table names only a PR, release, and check-run miner); this
// shape and its registry exist so the planner's three-family triage (spec
// §4.1) has somewhere real to route a jira-* metric name, fed by whatever
// upstream JIRA sync populates the metadata store's issue rows.
type JIRASample struct {
	Created     time.Time
	Resolved    time.Time // zero if still open
	StoryPoints float64
}

// JIRAFacts is the fact table a JIRA-family Calculator reduces.
type JIRAFacts struct {
	Issues []JIRASample
}

// JIRACalculator mirrors PRCalculator's shape for the JIRA family.
type JIRACalculator interface {
	Name() string
	Analyze(facts JIRAFacts) (Value, bool)
}

// JIRARegistry is the metric-identifier -> Calculator table for JIRA
// metrics.
type JIRARegistry map[string]JIRACalculator

func (r JIRARegistry) Has(name string) bool { _, ok := r[name]; return ok }

type jiraCalcFunc struct {
	name string
	fn   func([]JIRASample) (Value, bool)
}

func (c jiraCalcFunc) Name() string { return c.name }
func (c jiraCalcFunc) Analyze(facts JIRAFacts) (Value, bool) {
	return c.fn(facts.Issues)
}

// DefaultJIRARegistry builds the registered JIRA-family metrics.
func DefaultJIRARegistry() JIRARegistry {
	reg := JIRARegistry{}

	reg["jira-resolution-time"] = jiraCalcFunc{name: "jira-resolution-time", fn: func(issues []JIRASample) (Value, bool) {
		var samples []float64
		for _, i := range issues {
			if i.Created.IsZero() || i.Resolved.IsZero() {
				continue
			}
			samples = append(samples, i.Resolved.Sub(i.Created).Seconds())
		}
		if len(samples) == 0 {
			return Missing, false
		}
		return summarize(samples), true
	}}

	reg["jira-story-points-done"] = jiraCalcFunc{name: "jira-story-points-done", fn: func(issues []JIRASample) (Value, bool) {
		var total float64
		var any bool
		for _, i := range issues {
			if i.Resolved.IsZero() {
				continue
			}
			total += i.StoryPoints
			any = true
		}
		if !any {
			return Missing, false
		}
		return Value{Exists: true, Value: total, ConfidenceMin: total, ConfidenceMax: total}, true
	}}

	return reg
}
