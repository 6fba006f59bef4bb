package planner

import (
	"sort"

	"github.com/catherinevee/prodflow/pkg/account"
)

// Batch is one canonical mining request after simplification: all teams
// in Teams share an identical metric set over an identical interval
// sequence, so exactly one batched call per family covers all of them.
type Batch struct {
	Intervals []Interval
	Metrics   []string
	Teams     map[int64][]account.UserNodeID
}

// simplify applies spec §4.1's two lossless transformations: first group
// by shared Intervals ("key by intervals-tuple"), unioning each team's
// requested metrics within that bucket; then, within an intervals bucket,
// group teams whose unioned metric set is identical ("key by
// sorted-metrics-tuple"). The result covers the exact same
// (metric, interval, team) cell set as reqs, just batched to minimize the
// number of downstream mining calls.
func simplify(reqs []Request) []Batch {
	type intervalBucket struct {
		intervals   []Interval
		teamMetrics map[int64]map[string]bool
		teamMembers map[int64][]account.UserNodeID
	}

	buckets := make(map[string]*intervalBucket)
	var bucketOrder []string

	for _, req := range reqs {
		key := intervalsKey(req.Intervals)
		b, ok := buckets[key]
		if !ok {
			b = &intervalBucket{
				intervals:   req.Intervals,
				teamMetrics: make(map[int64]map[string]bool),
				teamMembers: make(map[int64][]account.UserNodeID),
			}
			buckets[key] = b
			bucketOrder = append(bucketOrder, key)
		}
		for team, members := range req.Teams {
			if _, ok := b.teamMembers[team]; !ok {
				b.teamMembers[team] = members
			}
			set, ok := b.teamMetrics[team]
			if !ok {
				set = make(map[string]bool)
				b.teamMetrics[team] = set
			}
			for _, m := range req.Metrics {
				set[m] = true
			}
		}
	}

	var out []Batch
	for _, key := range bucketOrder {
		b := buckets[key]

		type metricGroup struct {
			metrics []string
			teams   []int64
		}
		groups := make(map[string]*metricGroup)
		var groupOrder []string

		var teamOrder []int64
		for team := range b.teamMetrics {
			teamOrder = append(teamOrder, team)
		}
		sort.Slice(teamOrder, func(i, j int) bool { return teamOrder[i] < teamOrder[j] })

		for _, team := range teamOrder {
			set := b.teamMetrics[team]
			var names []string
			for m := range set {
				names = append(names, m)
			}
			sort.Strings(names)
			mk := metricsKey(names)
			g, ok := groups[mk]
			if !ok {
				g = &metricGroup{metrics: names}
				groups[mk] = g
				groupOrder = append(groupOrder, mk)
			}
			g.teams = append(g.teams, team)
		}

		for _, mk := range groupOrder {
			g := groups[mk]
			teams := make(map[int64][]account.UserNodeID, len(g.teams))
			for _, team := range g.teams {
				teams[team] = b.teamMembers[team]
			}
			out = append(out, Batch{Intervals: b.intervals, Metrics: g.metrics, Teams: teams})
		}
	}
	return out
}
