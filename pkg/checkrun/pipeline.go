package checkrun

import (
	"context"

	"github.com/catherinevee/prodflow/pkg/account"
	"github.com/catherinevee/prodflow/pkg/storage"
)

// Run executes the full check-run mining pipeline spec §4.4 describes:
// fetch, disambiguate, merge status contexts, split re-runs, clamp, and
// override suite conclusions, then aggregates into the list view. qLo/qHi
// bound the quantile trim applied to execution-time averages (e.g. 0.05
// and 0.95).
func Run(ctx context.Context, gw *storage.Gateway, win Window, repos []account.RepoNodeID, prs map[string]PRLifetime, qLo, qHi float64) ([]GroupResult, error) {
	rows, err := Fetch(ctx, gw, win, repos)
	if err != nil {
		return nil, err
	}

	rows = Disambiguate(rows, prs)
	rows = MergeStatusContexts(rows)
	rows = SplitReRuns(rows)
	rows = Clamp(rows)
	rows = OverrideSuiteConclusion(rows)

	return Aggregate(rows, win.From, win.To, qLo, qHi), nil
}
