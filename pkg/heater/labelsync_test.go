package heater

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catherinevee/prodflow/pkg/factcache"
	"github.com/catherinevee/prodflow/pkg/obslog"
	"github.com/catherinevee/prodflow/pkg/storage"
	"github.com/catherinevee/prodflow/pkg/telemetry"
)

func newLabelSyncTestRepo(t *testing.T) (*factcache.PRFactsRepo, *storage.Gateway) {
	t.Helper()
	gw, err := storage.Open(storage.Config{
		StateDSN:          "file:labelsync_state?mode=memory&cache=shared",
		MetadataDSN:       "file:labelsync_metadata?mode=memory&cache=shared",
		PrecomputedDSN:    "file:labelsync_precomputed?mode=memory&cache=shared",
		PersistentDataDSN: "file:labelsync_persistentdata?mode=memory&cache=shared",
	}, telemetry.New(telemetry.Config{ServiceName: "test"}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })

	repo, err := factcache.NewPRFactsRepo(context.Background(), gw)
	require.NoError(t, err)
	return repo, gw
}

type mapLabelSource map[string]map[string]string

func (m mapLabelSource) CurrentLabels(ctx context.Context, prNodeID string) (map[string]string, error) {
	return m[prNodeID], nil
}

func TestSyncLabels_UpdatesOnlyDriftedRows(t *testing.T) {
	repo, _ := newLabelSyncTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, factcache.PRFactsRow{
		PRNodeID: "pr1", ReleaseMatch: "tag", FormatVersion: 1, Category: factcache.CategoryMerged,
		Labels: map[string]string{"bug": "red"},
	}))
	require.NoError(t, repo.Upsert(ctx, factcache.PRFactsRow{
		PRNodeID: "pr2", ReleaseMatch: "tag", FormatVersion: 1, Category: factcache.CategoryMerged,
		Labels: map[string]string{"feature": "blue"},
	}))

	source := mapLabelSource{
		"pr1": {"bug": "red"},          // unchanged
		"pr2": {"feature": "green"},    // color drifted
	}

	updated, err := SyncLabels(ctx, repo, factcache.CategoryMerged, source, 10, obslog.New("test"))
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	row, found, err := repo.Get(ctx, "pr2", "tag", 1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "green", row.Labels["feature"])
}

func TestSyncLabels_CaseFoldsLabelKeysBeforeComparing(t *testing.T) {
	repo, _ := newLabelSyncTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, factcache.PRFactsRow{
		PRNodeID: "pr1", ReleaseMatch: "tag", FormatVersion: 1, Category: factcache.CategoryOpen,
		Labels: map[string]string{"Bug": "red"},
	}))

	source := mapLabelSource{"pr1": {"bug": "red"}}

	updated, err := SyncLabels(ctx, repo, factcache.CategoryOpen, source, 10, obslog.New("test"))
	require.NoError(t, err)
	require.Equal(t, 0, updated, "case-folded keys with matching values should not count as drift")
}

func TestSyncLabels_ChunksAcrossMultiplePages(t *testing.T) {
	repo, _ := newLabelSyncTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Upsert(ctx, factcache.PRFactsRow{
			PRNodeID: string(rune('a' + i)), ReleaseMatch: "tag", FormatVersion: 1, Category: factcache.CategoryDone,
			Labels: map[string]string{"x": "1"},
		}))
	}

	source := mapLabelSource{}
	for i := 0; i < 5; i++ {
		source[string(rune('a'+i))] = map[string]string{"x": "2"}
	}

	updated, err := SyncLabels(ctx, repo, factcache.CategoryDone, source, 2, obslog.New("test"))
	require.NoError(t, err)
	require.Equal(t, 5, updated)
}

func TestSyncLabels_ResolveFailureIsLoggedAndSkipped(t *testing.T) {
	repo, _ := newLabelSyncTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, factcache.PRFactsRow{
		PRNodeID: "pr1", ReleaseMatch: "tag", FormatVersion: 1, Category: factcache.CategoryMerged,
		Labels: map[string]string{"bug": "red"},
	}))

	updated, err := SyncLabels(ctx, repo, factcache.CategoryMerged, failingLabelSource{}, 10, obslog.New("test"))
	require.NoError(t, err)
	require.Equal(t, 0, updated)
}

type failingLabelSource struct{}

func (failingLabelSource) CurrentLabels(ctx context.Context, prNodeID string) (map[string]string, error) {
	return nil, errResolveFailed
}

var errResolveFailed = errors.New("resolve timed out")
