package factcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/catherinevee/prodflow/pkg/storage"
)

// PRCategory is the lifecycle bucket a PR-facts row belongs to, per spec
// §4.5's "tables keyed by (pr_node_id, release_match, format_version)".
type PRCategory string

const (
	CategoryOpen   PRCategory = "open"
	CategoryMerged PRCategory = "merged"
	CategoryDone   PRCategory = "done"
)

// PRFactsRow is one durable row: the opaque mined PR-times payload plus the
// two columns callers query independently of the payload (spec §4.5).
type PRFactsRow struct {
	PRNodeID      string
	ReleaseMatch  string
	FormatVersion int
	Category      PRCategory
	Payload       []byte // opaque PR-times blob
	Labels        map[string]string
	ActivityDays  []time.Time
	UpdatedAt     time.Time
}

// PRFactsRepo is the durable precomputed-facts side of the fact cache: the
// PR-times table keyed by (pr_node_id, release_match, format_version).
type PRFactsRepo struct {
	store *storage.Store
	gw    *storage.Gateway
}

// NewPRFactsRepo builds a repo over the precomputed store, ensuring its
// schema exists.
func NewPRFactsRepo(ctx context.Context, gw *storage.Gateway) (*PRFactsRepo, error) {
	r := &PRFactsRepo{store: gw.Precomputed, gw: gw}
	if err := r.store.WithWriteLock(func() error { return r.migrate() }); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PRFactsRepo) migrate() error {
	_, err := r.store.DB.Exec(`
	CREATE TABLE IF NOT EXISTS pr_facts (
		pr_node_id     TEXT NOT NULL,
		release_match  TEXT NOT NULL,
		format_version INTEGER NOT NULL,
		category       TEXT NOT NULL,
		payload        BLOB NOT NULL,
		labels         TEXT NOT NULL DEFAULT '{}',
		activity_days  TEXT NOT NULL DEFAULT '[]',
		updated_at     TIMESTAMP NOT NULL,
		PRIMARY KEY (pr_node_id, release_match, format_version)
	);
	CREATE TABLE IF NOT EXISTS commit_history (
		repository_full_name TEXT NOT NULL,
		format_version        INTEGER NOT NULL,
		dag                   BLOB NOT NULL,
		updated_at            TIMESTAMP NOT NULL,
		PRIMARY KEY (repository_full_name, format_version)
	);
	`)
	return err
}

// Upsert writes or replaces a PR-facts row.
func (r *PRFactsRepo) Upsert(ctx context.Context, row PRFactsRow) error {
	labelsJSON, err := json.Marshal(row.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}
	daysJSON, err := json.Marshal(row.ActivityDays)
	if err != nil {
		return fmt.Errorf("marshal activity_days: %w", err)
	}

	return r.gw.Query(ctx, r.store, "pr_facts.upsert", func(ctx context.Context) error {
		return r.store.WithWriteLock(func() error {
			_, err := r.store.DB.ExecContext(ctx, `
				INSERT INTO pr_facts (pr_node_id, release_match, format_version, category, payload, labels, activity_days, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(pr_node_id, release_match, format_version) DO UPDATE SET
					category = excluded.category,
					payload = excluded.payload,
					labels = excluded.labels,
					activity_days = excluded.activity_days,
					updated_at = excluded.updated_at
			`, row.PRNodeID, row.ReleaseMatch, row.FormatVersion, row.Category, row.Payload, string(labelsJSON), string(daysJSON), time.Now())
			return err
		})
	})
}

// Get reads back a single PR-facts row.
func (r *PRFactsRepo) Get(ctx context.Context, prNodeID, releaseMatch string, formatVersion int) (PRFactsRow, bool, error) {
	var row PRFactsRow
	var labelsJSON, daysJSON string
	found := false

	err := r.gw.Query(ctx, r.store, "pr_facts.get", func(ctx context.Context) error {
		err := r.store.DB.QueryRowContext(ctx, `
			SELECT pr_node_id, release_match, format_version, category, payload, labels, activity_days, updated_at
			FROM pr_facts WHERE pr_node_id = ? AND release_match = ? AND format_version = ?
		`, prNodeID, releaseMatch, formatVersion).Scan(
			&row.PRNodeID, &row.ReleaseMatch, &row.FormatVersion, &row.Category, &row.Payload, &labelsJSON, &daysJSON, &row.UpdatedAt)
		if err == sql.ErrNoRows {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil || !found {
		return PRFactsRow{}, false, err
	}
	if err := json.Unmarshal([]byte(labelsJSON), &row.Labels); err != nil {
		return PRFactsRow{}, false, fmt.Errorf("unmarshal labels: %w", err)
	}
	if err := json.Unmarshal([]byte(daysJSON), &row.ActivityDays); err != nil {
		return PRFactsRow{}, false, fmt.Errorf("unmarshal activity_days: %w", err)
	}
	return row, true, nil
}

// ForEachInCategory streams every row in category for a label-sync or
// heater pass, chunked by the caller's batch size.
func (r *PRFactsRepo) ForEachInCategory(ctx context.Context, category PRCategory, batchSize int, fn func(PRFactsRow) error) error {
	offset := 0
	for {
		rows, err := r.page(ctx, category, batchSize, offset)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for _, row := range rows {
			if err := fn(row); err != nil {
				return err
			}
		}
		offset += len(rows)
	}
}

func (r *PRFactsRepo) page(ctx context.Context, category PRCategory, limit, offset int) ([]PRFactsRow, error) {
	var out []PRFactsRow
	err := r.gw.Query(ctx, r.store, "pr_facts.page", func(ctx context.Context) error {
		rows, err := r.store.DB.QueryContext(ctx, `
			SELECT pr_node_id, release_match, format_version, category, payload, labels, activity_days, updated_at
			FROM pr_facts WHERE category = ? ORDER BY pr_node_id LIMIT ? OFFSET ?
		`, category, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var row PRFactsRow
			var labelsJSON, daysJSON string
			if err := rows.Scan(&row.PRNodeID, &row.ReleaseMatch, &row.FormatVersion, &row.Category, &row.Payload, &labelsJSON, &daysJSON, &row.UpdatedAt); err != nil {
				return err
			}
			_ = json.Unmarshal([]byte(labelsJSON), &row.Labels)
			_ = json.Unmarshal([]byte(daysJSON), &row.ActivityDays)
			out = append(out, row)
		}
		return rows.Err()
	})
	return out, err
}

// CommitHistory is the HEAD->ROOT adjacency map for a repository, keyed by
// (repository_full_name, format_version) per spec §6.
type CommitHistory struct {
	RepositoryFullName string
	FormatVersion      int
	DAG                map[string][]string // commit sha -> parent shas
	UpdatedAt          time.Time
}

// PutCommitHistory writes or replaces a repository's commit DAG.
func (r *PRFactsRepo) PutCommitHistory(ctx context.Context, h CommitHistory) error {
	payload, err := json.Marshal(h.DAG)
	if err != nil {
		return fmt.Errorf("marshal commit dag: %w", err)
	}
	return r.gw.Query(ctx, r.store, "commit_history.put", func(ctx context.Context) error {
		return r.store.WithWriteLock(func() error {
			_, err := r.store.DB.ExecContext(ctx, `
				INSERT INTO commit_history (repository_full_name, format_version, dag, updated_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(repository_full_name, format_version) DO UPDATE SET
					dag = excluded.dag, updated_at = excluded.updated_at
			`, h.RepositoryFullName, h.FormatVersion, payload, time.Now())
			return err
		})
	})
}

// GetCommitHistory reads back a repository's commit DAG.
func (r *PRFactsRepo) GetCommitHistory(ctx context.Context, repoFullName string, formatVersion int) (CommitHistory, bool, error) {
	var h CommitHistory
	var payload string
	found := false
	err := r.gw.Query(ctx, r.store, "commit_history.get", func(ctx context.Context) error {
		err := r.store.DB.QueryRowContext(ctx, `
			SELECT repository_full_name, format_version, dag, updated_at FROM commit_history
			WHERE repository_full_name = ? AND format_version = ?
		`, repoFullName, formatVersion).Scan(&h.RepositoryFullName, &h.FormatVersion, &payload, &h.UpdatedAt)
		if err == sql.ErrNoRows {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil || !found {
		return CommitHistory{}, false, err
	}
	if err := json.Unmarshal([]byte(payload), &h.DAG); err != nil {
		return CommitHistory{}, false, fmt.Errorf("unmarshal commit dag: %w", err)
	}
	return h, true, nil
}

var _ = strings.TrimSpace // keep strings import if future helpers need it
