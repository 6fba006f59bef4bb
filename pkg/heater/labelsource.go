package heater

import (
	"context"

	"github.com/catherinevee/prodflow/pkg/apierr"
	"github.com/catherinevee/prodflow/pkg/storage"
)

// MetadataLabelSource resolves a pull request's current label set straight
// from the metadata store's pr_labels table, the same table
// pkg/prminer.fetchAssociated reads when building a fresh PRBundle. Using
// the metadata store (rather than a live call to the GitHub API) matches
// the rest of this pipeline's read-only relationship to ingested data:
// nothing in this tree talks to GitHub directly, ingestion itself being
// out of scope.
type MetadataLabelSource struct {
	Storage *storage.Gateway
}

func (s MetadataLabelSource) CurrentLabels(ctx context.Context, prNodeID string) (map[string]string, error) {
	labels := make(map[string]string)
	err := s.Storage.Query(ctx, s.Storage.Metadata, "labelsync.fetch_labels", func(ctx context.Context) error {
		rows, err := s.Storage.Metadata.DB.QueryContext(ctx, `
			SELECT name, color FROM pr_labels WHERE pr_node_id = ?
		`, prNodeID)
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
		return nil, apierr.Upstreamf(err, "labelsync: fetch labels for %s", prNodeID)
	}
	return labels, nil
}
