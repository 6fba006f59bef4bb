package heater

import (
	"context"
	"strings"

	"github.com/catherinevee/prodflow/pkg/factcache"
	"github.com/catherinevee/prodflow/pkg/obslog"
)

// LabelSource resolves a pull request's current label set from the
// metadata store, independent of whatever was stored the last time it was
// mined.
type LabelSource interface {
	CurrentLabels(ctx context.Context, prNodeID string) (map[string]string, error)
}

// SyncLabels walks every stored PR-facts row in category, chunked into
// batchSize-row pages via PRFactsRepo.ForEachInCategory, and rewrites a
// row's stored labels only when they've drifted from the metadata store's
// current set. Grounded on the teacher's paginated discovery sweeps
// (internal/discovery's batch listing) narrowed to a targeted-update
// pass instead of a full re-mine.
func SyncLabels(ctx context.Context, repo *factcache.PRFactsRepo, category factcache.PRCategory, source LabelSource, batchSize int, logger obslog.Logger) (int, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	updated := 0

	err := repo.ForEachInCategory(ctx, category, batchSize, func(row factcache.PRFactsRow) error {
		current, err := source.CurrentLabels(ctx, row.PRNodeID)
		if err != nil {
			logger.Warn("labelsync: failed to resolve current labels", obslog.String("pr_node_id", row.PRNodeID), obslog.Any("error", err.Error()))
			return nil
		}
		if labelsEqualFold(row.Labels, current) {
			return nil
		}
		row.Labels = current
		if err := repo.Upsert(ctx, row); err != nil {
			return err
		}
		updated++
		return nil
	})

	return updated, err
}

// labelsEqualFold reports whether two label maps agree once keys are
// case-folded; values (label colors) are compared verbatim.
func labelsEqualFold(a, b map[string]string) bool {
	foldedA := foldKeys(a)
	foldedB := foldKeys(b)
	if len(foldedA) != len(foldedB) {
		return false
	}
	for k, v := range foldedA {
		if bv, ok := foldedB[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func foldKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}
