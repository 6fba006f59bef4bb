package heater

import (
	"context"

	"github.com/catherinevee/prodflow/pkg/account"
	"github.com/catherinevee/prodflow/pkg/storage"
)

// countDeployments is a thin read over the persistentdata store's
// deployments table (spec §1 names deployments as a persistentdata-store-
// sourced entity; this package doesn't ingest them, since that's
// explicitly out of scope — it only reads whatever another process has
// already written). The table is created empty on first use so a fresh
// persistentdata store never errors a heater pass that hasn't seen a
// deployment yet.
func countDeployments(ctx context.Context, gw *storage.Gateway, repo account.RepoNodeID) (int, error) {
	store := gw.PersistentData

	if err := store.WithWriteLock(func() error {
		_, err := store.DB.Exec(`
			CREATE TABLE IF NOT EXISTS deployments (
				repository_node_id TEXT NOT NULL,
				name                TEXT NOT NULL,
				environment         TEXT NOT NULL,
				finished_at         TIMESTAMP NOT NULL,
				conclusion          TEXT NOT NULL
			)
		`)
		return err
	}); err != nil {
		return 0, err
	}

	var count int
	err := gw.Query(ctx, store, "deployments.count", func(ctx context.Context) error {
		return store.DB.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM deployments WHERE repository_node_id = ?
		`, repo).Scan(&count)
	})
	return count, err
}
