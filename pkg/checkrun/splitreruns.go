package checkrun

import (
	"fmt"
	"sort"
)

// SplitReRuns relocates re-runs sharing a (suite, name) pair into disjoint
// synthetic suite identities, ordered by start time. Spec §4.4 step 4.
func SplitReRuns(rows []Row) []Row {
	type key struct{ suite, name string }
	groups := make(map[key][]int)
	var order []key
	for i, r := range rows {
		k := key{r.SuiteID, r.Name}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	out := make([]Row, len(rows))
	copy(out, rows)

	for _, k := range order {
		indices := groups[k]
		sort.Slice(indices, func(i, j int) bool { return rows[indices[i]].StartedAt.Before(rows[indices[j]].StartedAt) })
		for dup, idx := range indices {
			out[idx].SuiteID = fmt.Sprintf("%s#%d", k.suite, dup)
		}
	}
	return out
}
