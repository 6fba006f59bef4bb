package releaseminer

import (
	"context"
	"database/sql"

	"github.com/catherinevee/prodflow/pkg/account"
	"github.com/catherinevee/prodflow/pkg/apierr"
	"github.com/catherinevee/prodflow/pkg/factcache"
	"github.com/catherinevee/prodflow/pkg/storage"
)

// FetchCandidates loads every tag, branch head, and release event the
// metadata store has recorded for repo, for ResolveMatches to filter.
func FetchCandidates(ctx context.Context, gw *storage.Gateway, repo account.RepoNodeID) ([]RawRef, error) {
	var out []RawRef
	err := gw.Query(ctx, gw.Metadata, "releaseminer.fetch_refs", func(ctx context.Context) error {
		rows, err := gw.Metadata.DB.QueryContext(ctx, `
			SELECT name, sha, published_at FROM repository_refs WHERE repository_node_id = ?
		`, repo)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var ref RawRef
			if err := rows.Scan(&ref.Name, &ref.SHA, &ref.At); err != nil {
				return err
			}
			out = append(out, ref)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apierr.Upstreamf(err, "releaseminer: fetch refs for %s", repo)
	}
	return out, nil
}

// FetchDAG loads repo's full commit ancestry, preferring the durable
// commit-history row when present and falling back to the metadata store's
// raw commit edges otherwise (spec §6's "durable side" persistence for
// expensive-to-recompute state).
func FetchDAG(ctx context.Context, gw *storage.Gateway, repo *factcache.PRFactsRepo, repoFullName string, formatVersion int) (DAG, error) {
	if cached, ok, err := repo.GetCommitHistory(ctx, repoFullName, formatVersion); err != nil {
		return nil, err
	} else if ok {
		return DAG(cached.DAG), nil
	}

	dag := make(DAG)
	err := gw.Query(ctx, gw.Metadata, "releaseminer.fetch_commit_edges", func(ctx context.Context) error {
		rows, err := gw.Metadata.DB.QueryContext(ctx, `
			SELECT sha, parent_sha FROM commit_edges WHERE repository_full_name = ?
		`, repoFullName)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var sha string
			var parent sql.NullString
			if err := rows.Scan(&sha, &parent); err != nil {
				return err
			}
			if parent.Valid {
				dag[sha] = append(dag[sha], parent.String)
			} else if _, ok := dag[sha]; !ok {
				dag[sha] = nil
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apierr.Upstreamf(err, "releaseminer: fetch commit edges for %s", repoFullName)
	}

	if err := repo.PutCommitHistory(ctx, factcache.CommitHistory{
		RepositoryFullName: repoFullName,
		FormatVersion:      formatVersion,
		DAG:                dag,
	}); err != nil {
		return nil, err
	}
	return dag, nil
}
