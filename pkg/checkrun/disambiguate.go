package checkrun

import (
	"sort"
	"time"
)

// PRLifetime is the subset of PR facts the disambiguation pass needs:
// enough to test suite-start containment (Pass A) and to break ties by
// author match and commit count (Pass B).
type PRLifetime struct {
	NodeID      string
	Author      string
	CommitAuthor string // the commit author on the shared commit, Pass B input
	Created     time.Time
	Closed      time.Time // zero if still open
	CommitCount int
}

// Disambiguate resolves a check_run_node_id that was fetched once per
// candidate PR attribution down to at most one row, per spec §4.4 step 2.
func Disambiguate(rows []Row, prs map[string]PRLifetime) []Row {
	filtered := passA(rows, prs)
	return passB(filtered, prs)
}

// passA drops attributions whose suite start time falls outside
// [PR.created, PR.closed+1h]. A row attributed to an unknown PR id passes
// through untouched (the PR registry is assumed complete for fetched
// rows); callers populate prs from the same window the rows were fetched
// from.
func passA(rows []Row, prs map[string]PRLifetime) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.PRNodeID == "" {
			out = append(out, r)
			continue
		}
		pr, ok := prs[r.PRNodeID]
		if !ok {
			out = append(out, r)
			continue
		}
		upper := pr.Closed
		if upper.IsZero() {
			upper = time.Now()
		} else {
			upper = upper.Add(time.Hour)
		}
		if r.StartedAt.Before(pr.Created) || r.StartedAt.After(upper) {
			r.PRNodeID = ""
		}
		out = append(out, r)
	}
	return out
}

// passB resolves any check_run_node_id still claimed by more than one PR
// by preferring the PR whose author matches the commit author, then the
// PR with the fewest commits, stabilized by created_at ascending.
func passB(rows []Row, prs map[string]PRLifetime) []Row {
	groups := make(map[string][]Row)
	var order []string
	for _, r := range rows {
		if _, ok := groups[r.NodeID]; !ok {
			order = append(order, r.NodeID)
		}
		groups[r.NodeID] = append(groups[r.NodeID], r)
	}

	out := make([]Row, 0, len(rows))
	for _, nodeID := range order {
		group := groups[nodeID]
		candidates := make([]Row, 0, len(group))
		seen := make(map[string]bool)
		for _, r := range group {
			if r.PRNodeID == "" {
				continue
			}
			if seen[r.PRNodeID] {
				continue
			}
			seen[r.PRNodeID] = true
			candidates = append(candidates, r)
		}

		if len(candidates) == 0 {
			// every attribution was dropped in Pass A; keep one
			// unattributed row.
			rep := group[0]
			rep.PRNodeID = ""
			out = append(out, rep)
			continue
		}
		if len(candidates) == 1 {
			out = append(out, candidates[0])
			continue
		}

		sort.Slice(candidates, func(i, j int) bool {
			pi, pj := prs[candidates[i].PRNodeID], prs[candidates[j].PRNodeID]
			return pi.Created.Before(pj.Created)
		})

		winner := argminPR(candidates, prs)
		out = append(out, winner)
	}
	return out
}

func argminPR(candidates []Row, prs map[string]PRLifetime) Row {
	var authorMatches []Row
	for _, r := range candidates {
		pr := prs[r.PRNodeID]
		if pr.Author == pr.CommitAuthor {
			authorMatches = append(authorMatches, r)
		}
	}
	pool := candidates
	if len(authorMatches) > 0 {
		pool = authorMatches
	}

	best := pool[0]
	bestCount := prs[best.PRNodeID].CommitCount
	for _, r := range pool[1:] {
		if c := prs[r.PRNodeID].CommitCount; c < bestCount {
			best, bestCount = r, c
		}
	}
	return best
}
