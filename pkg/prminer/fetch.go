package prminer

import (
	"context"
	"database/sql"

	"github.com/catherinevee/prodflow/pkg/account"
	"github.com/catherinevee/prodflow/pkg/apierr"
	"github.com/catherinevee/prodflow/pkg/storage"
)

// fetchCandidates returns every PR row in repos whose activity window
// overlaps win, honoring blacklist and an optional participant filter.
// Candidate attribution never consults labels (spec §4.2 step 4).
func fetchCandidates(ctx context.Context, gw *storage.Gateway, repos []account.RepoNodeID, win Window, blacklist map[PRNodeID]bool, participants *ParticipantFilter) ([]PRRow, error) {
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
	// a PR's activity window overlaps win when it started by win.To and
	// either is still open or closed no earlier than win.From.
	placeholders = append(placeholders, win.To, win.From)

	var rows []PRRow
	err := gw.Query(ctx, gw.Metadata, "prminer.fetch_candidates", func(ctx context.Context) error {
		query := `
			SELECT node_id, repository_node_id, author, merger, created_at, merged_at, closed_at, additions, deletions, files_changed
			FROM pull_requests
			WHERE repository_node_id IN (` + inClause + `)
			  AND created_at <= ?
			  AND (closed_at IS NULL OR closed_at >= ?)
		`
		sqlRows, err := gw.Metadata.DB.QueryContext(ctx, query, placeholders...)
		if err != nil {
			return err
		}
		defer sqlRows.Close()

		for sqlRows.Next() {
			var row PRRow
			var merged, closed sql.NullTime
			if err := sqlRows.Scan(&row.NodeID, &row.RepoNode, &row.Author, &row.Merger, &row.Created, &merged, &closed, &row.Additions, &row.Deletions, &row.Files); err != nil {
				return err
			}
			if merged.Valid {
				row.MergedAt = &merged.Time
			}
			if closed.Valid {
				row.ClosedAt = &closed.Time
			}
			rows = append(rows, row)
		}
		return sqlRows.Err()
	})
	if err != nil {
		return nil, apierr.Upstreamf(err, "prminer: fetch candidates")
	}

	filtered := rows[:0]
	for _, row := range rows {
		if blacklist[row.NodeID] {
			continue
		}
		if participants != nil && !participants.matchesRow(row) {
			continue
		}
		filtered = append(filtered, row)
	}
	return filtered, nil
}

// matchesRow reports whether the PR row itself (author/merger) satisfies
// f without needing the PR's events/commits/comments fetched yet. The
// richer roles (reviewer/commit-author/commit-committer/commenter) are
// checked once the associated rows are fetched, in matchesAssociated.
func (f *ParticipantFilter) matchesRow(row PRRow) bool {
	if len(f.Roles) == 0 {
		return row.Author == string(f.Users) || row.Merger == string(f.Users)
	}
	for _, role := range f.Roles {
		switch role {
		case RoleAuthor:
			if row.Author == string(f.Users) {
				return true
			}
		case RoleMerger:
			if row.Merger == string(f.Users) {
				return true
			}
		}
	}
	return false
}

// matchesAssociated extends the participant filter to roles that require
// the PR's commits/events to evaluate (reviewer, commit author/committer,
// commenter).
func (f *ParticipantFilter) matchesAssociated(events []Event, commits []Commit) bool {
	if f == nil {
		return true
	}
	roleSet := make(map[Role]bool, len(f.Roles))
	for _, r := range f.Roles {
		roleSet[r] = true
	}
	any := len(f.Roles) == 0

	for _, c := range commits {
		if (any || roleSet[RoleCommitAuthor]) && c.Author == f.Users {
			return true
		}
		if (any || roleSet[RoleCommitCommitter]) && c.Committer == f.Users {
			return true
		}
	}
	for _, e := range events {
		if e.Actor != f.Users {
			continue
		}
		switch e.Kind {
		case "review":
			if any || roleSet[RoleReviewer] {
				return true
			}
		case "comment":
			if any || roleSet[RoleCommenter] {
				return true
			}
		}
	}
	return false
}

// fetchAssociated loads the events, commits, and labels for one PR. The
// release link is not loaded here; the heater sets it after release mining.
func fetchAssociated(ctx context.Context, gw *storage.Gateway, pr PRRow) ([]Event, []Commit, map[string]string, error) {
	var events []Event
	var commits []Commit
	labels := make(map[string]string)

	err := gw.Query(ctx, gw.Metadata, "prminer.fetch_events", func(ctx context.Context) error {
		rows, err := gw.Metadata.DB.QueryContext(ctx, `
			SELECT kind, occurred_at, actor, review_state FROM pr_events WHERE pr_node_id = ?
		`, pr.NodeID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var e Event
			var reviewState sql.NullString
			if err := rows.Scan(&e.Kind, &e.At, &e.Actor, &reviewState); err != nil {
				return err
			}
			e.ReviewState = reviewState.String
			events = append(events, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, nil, apierr.Upstreamf(err, "prminer: fetch events for %s", pr.NodeID)
	}

	err = gw.Query(ctx, gw.Metadata, "prminer.fetch_commits", func(ctx context.Context) error {
		rows, err := gw.Metadata.DB.QueryContext(ctx, `
			SELECT sha, author, committer, authored_at FROM pr_commits WHERE pr_node_id = ?
		`, pr.NodeID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c Commit
			if err := rows.Scan(&c.SHA, &c.Author, &c.Committer, &c.At); err != nil {
				return err
			}
			commits = append(commits, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, nil, apierr.Upstreamf(err, "prminer: fetch commits for %s", pr.NodeID)
	}

	err = gw.Query(ctx, gw.Metadata, "prminer.fetch_labels", func(ctx context.Context) error {
		rows, err := gw.Metadata.DB.QueryContext(ctx, `
			SELECT name, color FROM pr_labels WHERE pr_node_id = ?
		`, pr.NodeID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var name, color string
			if err := rows.Scan(&name, &color); err != nil {
				return err
			}
			labels[name] = color
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, nil, apierr.Upstreamf(err, "prminer: fetch labels for %s", pr.NodeID)
	}

	return events, commits, labels, nil
}
