// Package planner implements the request planner (spec §4.1, 10% share):
// it deduplicates and re-groups many (metrics, intervals, teams) requests
// into the minimal set of per-family mining calls, triages metric names
// against the three pkg/metrics registries, dispatches one batched call
// per non-empty family concurrently, and reshapes each family's result
// back into interval -> metric -> team_id -> value.
package planner

import (
	"sort"
	"time"

	"github.com/catherinevee/prodflow/pkg/account"
	"github.com/catherinevee/prodflow/pkg/metrics"
)

// Interval is a half-open time range a metric request is evaluated over.
type Interval struct {
	From time.Time
	To   time.Time
}

// Request is one caller-submitted metric request: a set of metric names,
// evaluated over every Interval, once per team in Teams.
type Request struct {
	Metrics   []string
	Intervals []Interval
	// Teams maps team id to its flattened member set (account.TeamTree.Flatten
	// output), the shape spec §4.1 names "teams-as-{id->members}".
	Teams map[int64][]account.UserNodeID
}

// Result is the planner's output: interval -> metric -> team_id -> value.
type Result map[Interval]map[string]map[int64]metrics.Value

// set puts a value into r, allocating intermediate maps as needed.
func (r Result) set(iv Interval, metric string, team int64, v metrics.Value) {
	byMetric, ok := r[iv]
	if !ok {
		byMetric = make(map[string]map[int64]metrics.Value)
		r[iv] = byMetric
	}
	byTeam, ok := byMetric[metric]
	if !ok {
		byTeam = make(map[int64]metrics.Value)
		byMetric[metric] = byTeam
	}
	byTeam[team] = v
}

// intervalsKey is the canonical, order-independent string identity of a
// set of intervals, used to group requests sharing identical Intervals
// (spec §4.1 step 1: "key by intervals-tuple").
func intervalsKey(intervals []Interval) string {
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].From.Equal(sorted[j].From) {
			return sorted[i].From.Before(sorted[j].From)
		}
		return sorted[i].To.Before(sorted[j].To)
	})
	var sb []byte
	for _, iv := range sorted {
		sb = append(sb, []byte(iv.From.UTC().Format(time.RFC3339Nano))...)
		sb = append(sb, '|')
		sb = append(sb, []byte(iv.To.UTC().Format(time.RFC3339Nano))...)
		sb = append(sb, ';')
	}
	return string(sb)
}

// metricsKey is the canonical, order-independent string identity of a set
// of metric names, used to group teams asking for an identical metric set
// within an intervals bucket (spec §4.1 step 2: "key by sorted-metrics-tuple").
func metricsKey(names []string) string {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	var sb []byte
	for _, n := range sorted {
		sb = append(sb, []byte(n)...)
		sb = append(sb, ';')
	}
	return string(sb)
}
