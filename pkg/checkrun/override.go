package checkrun

// overridePrecedence is applied in listed order: each entry overrides the
// suite conclusion decided by the previous entries if also present, so the
// last matching entry in this slice wins. Decided as the answer to an open
// question left by the original design (see DESIGN.md): "last-wins by
// listed order" rather than strict TIMED_OUT > CANCELLED > FAILURE
// precedence.
var overridePrecedence = []Conclusion{ConclusionTimedOut, ConclusionCancelled, ConclusionFailure}

// OverrideSuiteConclusion corrects SuiteConclusion, the provider-reported
// outcome of the whole check suite, for suites GitHub reported as
// SUCCESS or NEUTRAL even though one of their own check runs disagrees.
// A run's own Conclusion is never touched: that field belongs to the run
// alone and downstream per-(repository, name) aggregation depends on it
// staying that way. Grounded on
// miners/github/check_run.py's _split_duplicate_check_runs, which applies
// this same correction only where the suite's existing conclusion is
// already SUCCESS or NEUTRAL, in the same TIMED_OUT, CANCELLED, FAILURE
// order. Spec §4.4 step 6.
func OverrideSuiteConclusion(rows []Row) []Row {
	type suiteKey struct{ repo, suite string }
	bySuite := make(map[suiteKey][]int)
	for i, r := range rows {
		k := suiteKey{r.Repository, r.SuiteID}
		bySuite[k] = append(bySuite[k], i)
	}

	out := make([]Row, len(rows))
	copy(out, rows)

	for _, indices := range bySuite {
		if !wasSuccessfulSuite(rows, indices) {
			continue
		}

		present := make(map[Conclusion]bool)
		for _, i := range indices {
			present[rows[i].Conclusion] = true
		}

		var winner Conclusion
		for _, candidate := range overridePrecedence {
			if present[candidate] {
				winner = candidate
			}
		}
		if winner == "" {
			continue
		}
		for _, i := range indices {
			out[i].SuiteConclusion = winner
		}
	}
	return out
}

// wasSuccessfulSuite reports whether every row in the suite still carries
// the provider's original SUCCESS or NEUTRAL suite conclusion. Only a
// suite that starts out looking successful is a candidate for this
// correction; a suite GitHub already reported as failing needs no
// override.
func wasSuccessfulSuite(rows []Row, indices []int) bool {
	for _, i := range indices {
		if c := rows[i].SuiteConclusion; c != ConclusionSuccess && c != ConclusionNeutral {
			return false
		}
	}
	return true
}
