package checkrun

import "sort"

// MergeStatusContexts pairs status-context rows (identified by a non-empty
// URL) by (suite, url): the earliest becomes the start, the latest becomes
// the finish, with the finish record's status/conclusion copied onto the
// merged row. Rows with no URL (native check runs) pass through unchanged.
// Spec §4.4 step 3.
func MergeStatusContexts(rows []Row) []Row {
	type key struct{ suite, url string }
	groups := make(map[key][]Row)
	var order []key
	var passthrough []Row

	for _, r := range rows {
		if r.URL == "" {
			passthrough = append(passthrough, r)
			continue
		}
		k := key{r.SuiteID, r.URL}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	out := make([]Row, 0, len(passthrough)+len(order))
	out = append(out, passthrough...)

	for _, k := range order {
		group := groups[k]
		sort.Slice(group, func(i, j int) bool { return group[i].StartedAt.Before(group[j].StartedAt) })
		start := group[0]
		finish := group[len(group)-1]
		merged := start
		merged.CompletedAt = finish.CompletedAt
		if merged.CompletedAt.IsZero() {
			merged.CompletedAt = finish.StartedAt
		}
		merged.Status = finish.Status
		merged.Conclusion = finish.Conclusion
		merged.SuiteConclusion = finish.SuiteConclusion
		out = append(out, merged)
	}
	return out
}
