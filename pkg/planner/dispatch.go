package planner

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/catherinevee/prodflow/pkg/account"
	"github.com/catherinevee/prodflow/pkg/apierr"
	"github.com/catherinevee/prodflow/pkg/metrics"
)

// FamilyRequest is one batched per-family mining call: a canonical set of
// intervals and metric names, evaluated once per team.
type FamilyRequest struct {
	Intervals []Interval
	Metrics   []string
	Teams     map[int64][]account.UserNodeID
}

// FamilyResult is a family miner's rectangular result, reshaped from the
// original's literal `[team][0][interval][0][metric].value` nested-array
// layout (the `[0]` dims are placeholder axes the Python ancestor
// reserved for a repository/group-by dimension this planner doesn't use)
// into the map shape idiomatic Go prefers: team -> interval -> metric ->
// value.
type FamilyResult map[int64]map[Interval]map[string]metrics.Value

// FamilyMiner is the per-family mining entry point the planner dispatches
// a Batch to. Implementations own the fetch-then-calculate steps specific
// to their family (e.g. pkg/prminer + pkg/metrics.PRRegistry for PR).
type FamilyMiner interface {
	Mine(ctx context.Context, req FamilyRequest) (FamilyResult, error)
}

// Planner ties the three registries (for triage) to the three family
// miners (for dispatch).
type Planner struct {
	Registries Registries
	PR         FamilyMiner
	Release    FamilyMiner
	JIRA       FamilyMiner
}

// New builds a Planner from its registries and family miners. A nil
// FamilyMiner is valid so long as Registries never routes a name to it.
func New(registries Registries, pr, release, jira FamilyMiner) *Planner {
	return &Planner{Registries: registries, PR: pr, Release: release, JIRA: jira}
}

// Plan simplifies reqs, triages each resulting batch's metrics into
// families, dispatches one call per non-empty family concurrently per
// batch, and reshapes every family's result into the combined output
// (spec §4.1's full contract).
func (p *Planner) Plan(ctx context.Context, reqs []Request) (Result, error) {
	result := make(Result)

	for _, batch := range simplify(reqs) {
		pr, release, jira, err := p.Registries.Triage(batch.Metrics)
		if err != nil {
			return nil, err
		}

		g, gctx := errgroup.WithContext(ctx)
		var mu sync.Mutex
		merge := func(fr FamilyResult) {
			mu.Lock()
			defer mu.Unlock()
			for team, byInterval := range fr {
				for iv, byMetric := range byInterval {
					for metric, v := range byMetric {
						result.set(iv, metric, team, v)
					}
				}
			}
		}

		dispatch := func(miner FamilyMiner, names []string) {
			if len(names) == 0 {
				return
			}
			g.Go(func() error {
				fr, err := miner.Mine(gctx, FamilyRequest{Intervals: batch.Intervals, Metrics: names, Teams: batch.Teams})
				if err != nil {
					return wrapMiningError(err)
				}
				merge(fr)
				return nil
			})
		}

		dispatch(p.PR, pr)
		dispatch(p.Release, release)
		dispatch(p.JIRA, jira)

		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// wrapMiningError preserves an *apierr.Error as-is (spec §7's "preserving
// partial hit/miss counters... not swallowed" applies to the caller of
// Plan, not to this boundary) and wraps anything else as upstream, per
// spec §4.1's "any downstream mining failure -> pipeline-error with the
// upstream cause preserved".
func wrapMiningError(err error) error {
	if ae, ok := apierr.As(err); ok {
		return ae
	}
	return apierr.Upstream(err)
}
