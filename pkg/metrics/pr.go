package metrics

import (
	"time"

	"github.com/catherinevee/prodflow/pkg/prminer"
)

// PRSample is one PR's contribution to a PR-family metric request: its
// derived timeline and size, scoped to a single team/interval bucket by
// the planner before Analyze ever sees it.
type PRSample struct {
	Times prminer.Timestamps
	Size  prminer.Size
}

// PRFacts is the fact table a PR-family Calculator reduces to a Value.
type PRFacts struct {
	PRs []PRSample
}

// PRCalculator is a named, pure reduction over a PR fact table. Analyze
// returns false when no sample in facts is applicable to the metric (e.g.
// no PR was ever approved), distinct from an empty facts.PRs.
type PRCalculator interface {
	Name() string
	Analyze(facts PRFacts) (Value, bool)
}

// PRRegistry is the metric-identifier -> Calculator table the planner's
// triage step looks names up in (spec §4.1).
type PRRegistry map[string]PRCalculator

// Has reports whether name is a recognized PR metric.
func (r PRRegistry) Has(name string) bool { _, ok := r[name]; return ok }

type prCalcFunc struct {
	name string
	fn   func(PRSample) (time.Duration, bool)
}

func (c prCalcFunc) Name() string { return c.name }

func (c prCalcFunc) Analyze(facts PRFacts) (Value, bool) {
	var samples []float64
	for _, pr := range facts.PRs {
		d, ok := c.fn(pr)
		if !ok {
			continue
		}
		samples = append(samples, d.Seconds())
	}
	if len(samples) == 0 {
		return Missing, false
	}
	return summarize(samples), true
}

// DefaultPRRegistry builds the registered PR-family metrics, grounded on
// original_source's athenian.api.controllers.features.github.pull_request_metrics
// calculator set (pr-wip-time, pr-review-time, pr-merging-time,
// pr-release-time, pr-lead-time), each translated from its Python
// analyze(times) body to the equivalent prminer.Timestamps field logic.
func DefaultPRRegistry() PRRegistry {
	reg := PRRegistry{}
	register := func(name string, fn func(PRSample) (time.Duration, bool)) {
		reg[name] = prCalcFunc{name: name, fn: fn}
	}

	register("pr-wip-time", func(pr PRSample) (time.Duration, bool) {
		if pr.Times.FirstReviewRequest.IsZero() || pr.Times.WorkBegan.IsZero() {
			return 0, false
		}
		return pr.Times.FirstReviewRequest.Sub(pr.Times.WorkBegan), true
	})

	register("pr-review-time", func(pr PRSample) (time.Duration, bool) {
		if pr.Times.FirstReviewRequest.IsZero() || pr.Times.Closed.IsZero() {
			return 0, false
		}
		switch {
		case !pr.Times.Approved.IsZero():
			return pr.Times.Approved.Sub(pr.Times.FirstReviewRequest), true
		case !pr.Times.LastReview.IsZero():
			return pr.Times.LastReview.Sub(pr.Times.FirstReviewRequest), true
		default:
			return 0, false
		}
	})

	register("pr-merging-time", func(pr PRSample) (time.Duration, bool) {
		if pr.Times.Approved.IsZero() || pr.Times.Closed.IsZero() {
			return 0, false
		}
		return pr.Times.Closed.Sub(pr.Times.Approved), true
	})

	register("pr-release-time", func(pr PRSample) (time.Duration, bool) {
		if pr.Times.Merged.IsZero() || pr.Times.Released.IsZero() {
			return 0, false
		}
		return pr.Times.Released.Sub(pr.Times.Merged), true
	})

	register("pr-lead-time", func(pr PRSample) (time.Duration, bool) {
		if pr.Times.Released.IsZero() || pr.Times.WorkBegan.IsZero() {
			return 0, false
		}
		return pr.Times.Released.Sub(pr.Times.WorkBegan), true
	})

	register("pr-cycle-time", func(pr PRSample) (time.Duration, bool) {
		if pr.Times.Closed.IsZero() || pr.Times.WorkBegan.IsZero() {
			return 0, false
		}
		return pr.Times.Closed.Sub(pr.Times.WorkBegan), true
	})

	return reg
}
