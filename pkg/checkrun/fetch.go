package checkrun

import (
	"context"
	"database/sql"
	"time"

	"github.com/catherinevee/prodflow/pkg/account"
	"github.com/catherinevee/prodflow/pkg/apierr"
	"github.com/catherinevee/prodflow/pkg/storage"
)

// Window is the closed time range [From, To] a check-run fetch covers.
type Window struct {
	From time.Time
	To   time.Time
}

// Fetch loads in-window check-run rows plus any out-of-window run that
// shares a PR id with an in-window run, so a PR's timeline is never
// truncated mid-suite. Spec §4.4 step 1.
func Fetch(ctx context.Context, gw *storage.Gateway, win Window, repos []account.RepoNodeID) ([]Row, error) {
	if len(repos) == 0 {
		return nil, nil
	}

	placeholders := make([]interface{}, 0, len(repos)+2)
	var inClause string
	for i, r := range repos {
		if i > 0 {
			inClause += ","
		}
		inClause += "?"
		placeholders = append(placeholders, string(r))
	}

	var inWindow []Row
	err := gw.Query(ctx, gw.Metadata, "checkrun.fetch_in_window", func(ctx context.Context) error {
		query := `
			SELECT node_id, repository_node_id, suite_id, name, status, conclusion,
			       suite_conclusion, started_at, completed_at, commit_sha, author, pr_node_id, url
			FROM check_runs
			WHERE repository_node_id IN (` + inClause + `)
			  AND started_at >= ? AND started_at <= ?
		`
		rows, err := gw.Metadata.DB.QueryContext(ctx, query, append(append([]interface{}{}, placeholders...), win.From, win.To)...)
		if err != nil {
			return err
		}
		defer rows.Close()
		inWindow, err = scanRows(rows)
		return err
	})
	if err != nil {
		return nil, apierr.Upstreamf(err, "checkrun: fetch in-window runs")
	}

	prIDs := make(map[string]bool)
	for _, r := range inWindow {
		if r.PRNodeID != "" {
			prIDs[r.PRNodeID] = true
		}
	}
	if len(prIDs) == 0 {
		return inWindow, nil
	}

	prPlaceholders := make([]interface{}, 0, len(prIDs))
	var prInClause string
	for id := range prIDs {
		if len(prPlaceholders) > 0 {
			prInClause += ","
		}
		prInClause += "?"
		prPlaceholders = append(prPlaceholders, id)
	}

	var crossWindow []Row
	err = gw.Query(ctx, gw.Metadata, "checkrun.fetch_cross_window", func(ctx context.Context) error {
		query := `
			SELECT node_id, repository_node_id, suite_id, name, status, conclusion,
			       suite_conclusion, started_at, completed_at, commit_sha, author, pr_node_id, url
			FROM check_runs
			WHERE pr_node_id IN (` + prInClause + `)
			  AND (started_at < ? OR started_at > ?)
		`
		rows, err := gw.Metadata.DB.QueryContext(ctx, query, append(append([]interface{}{}, prPlaceholders...), win.From, win.To)...)
		if err != nil {
			return err
		}
		defer rows.Close()
		crossWindow, err = scanRows(rows)
		return err
	})
	if err != nil {
		return nil, apierr.Upstreamf(err, "checkrun: fetch cross-window runs")
	}

	return append(inWindow, crossWindow...), nil
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	var out []Row
	for rows.Next() {
		var r Row
		var prNodeID, url, suiteConclusion sql.NullString
		var completedAtTime sql.NullTime
		if err := rows.Scan(&r.NodeID, &r.Repository, &r.SuiteID, &r.Name, &r.Status, &r.Conclusion,
			&suiteConclusion, &r.StartedAt, &completedAtTime, &r.CommitSHA, &r.Author, &prNodeID, &url); err != nil {
			return nil, err
		}
		if completedAtTime.Valid {
			r.CompletedAt = completedAtTime.Time
		}
		r.PRNodeID = prNodeID.String
		r.URL = url.String
		r.SuiteConclusion = Conclusion(suiteConclusion.String)
		out = append(out, r)
	}
	return out, rows.Err()
}
