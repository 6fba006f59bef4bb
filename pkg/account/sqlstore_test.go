package account

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/prodflow/pkg/storage"
	"github.com/catherinevee/prodflow/pkg/telemetry"
)

func newSQLStoreTestGateway(t *testing.T) *storage.Gateway {
	t.Helper()
	gw, err := storage.Open(storage.Config{
		StateDSN:          "file:account_sqlstore_state?mode=memory&cache=shared",
		MetadataDSN:       "file:account_sqlstore_metadata?mode=memory&cache=shared",
		PrecomputedDSN:    "file:account_sqlstore_precomputed?mode=memory&cache=shared",
		PersistentDataDSN: "file:account_sqlstore_persistentdata?mode=memory&cache=shared",
	}, telemetry.New(telemetry.Config{ServiceName: "test"}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

func testAccount(id ID, expiresAt time.Time) Account {
	return Account{
		ID:   id,
		Name: "acme",
		RepositorySet: RepositorySet{
			Repositories: []Repository{{NodeID: "r1", FullName: "acme/widgets"}},
			UpdatesCount: 1,
		},
		ReleaseSettings: map[RepoNodeID]ReleaseMatchSettings{
			"r1": {Match: MatchTag, TagRegexp: "v.*"},
		},
		JIRAInstallation: &JIRAInstallation{InstallationID: "jira-1", BaseURL: "https://acme.atlassian.net"},
		FeatureFlags:     map[string]bool{"beta": true},
		ExpiresAt:        expiresAt,
	}
}

func TestSQLStore_PutThenGet_RoundTrips(t *testing.T) {
	gw := newSQLStoreTestGateway(t)
	store, err := NewSQLStore(context.Background(), gw)
	require.NoError(t, err)

	want := testAccount(1, time.Now().Add(time.Hour))
	require.NoError(t, store.Put(context.Background(), want))

	got, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.RepositorySet, got.RepositorySet)
	assert.Equal(t, want.ReleaseSettings, got.ReleaseSettings)
	require.NotNil(t, got.JIRAInstallation)
	assert.Equal(t, *want.JIRAInstallation, *got.JIRAInstallation)
	assert.Equal(t, want.FeatureFlags, got.FeatureFlags)
	assert.WithinDuration(t, want.ExpiresAt, got.ExpiresAt, time.Second)
}

func TestSQLStore_Get_UnknownAccountIsNotFound(t *testing.T) {
	gw := newSQLStoreTestGateway(t)
	store, err := NewSQLStore(context.Background(), gw)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), 999)
	require.Error(t, err)
}

func TestSQLStore_Put_WithoutJIRAInstallationLeavesItNil(t *testing.T) {
	gw := newSQLStoreTestGateway(t)
	store, err := NewSQLStore(context.Background(), gw)
	require.NoError(t, err)

	a := testAccount(2, time.Now().Add(time.Hour))
	a.JIRAInstallation = nil
	require.NoError(t, store.Put(context.Background(), a))

	got, err := store.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, got.JIRAInstallation)
}

func TestSQLStore_Active_ExcludesExpiredAccounts(t *testing.T) {
	gw := newSQLStoreTestGateway(t)
	store, err := NewSQLStore(context.Background(), gw)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), testAccount(10, time.Now().Add(time.Hour))))
	require.NoError(t, store.Put(context.Background(), testAccount(11, time.Now().Add(-time.Hour))))

	active, err := store.Active(context.Background())
	require.NoError(t, err)

	ids := make([]ID, 0, len(active))
	for _, a := range active {
		ids = append(ids, a.ID)
	}
	assert.Contains(t, ids, ID(10))
	assert.NotContains(t, ids, ID(11))
}

func TestSQLStore_MarkPrecomputed_BumpsUpdatesCount(t *testing.T) {
	gw := newSQLStoreTestGateway(t)
	store, err := NewSQLStore(context.Background(), gw)
	require.NoError(t, err)

	a := testAccount(20, time.Now().Add(time.Hour))
	a.RepositorySet.Precomputed = false
	a.RepositorySet.UpdatesCount = 0
	require.NoError(t, store.Put(context.Background(), a))

	require.NoError(t, store.MarkPrecomputed(context.Background(), 20))

	got, err := store.Get(context.Background(), 20)
	require.NoError(t, err)
	assert.True(t, got.RepositorySet.Precomputed)
	assert.Equal(t, int64(1), got.RepositorySet.UpdatesCount)
}

func TestSQLStore_MarkPrecomputed_UnknownAccountIsNotFound(t *testing.T) {
	gw := newSQLStoreTestGateway(t)
	store, err := NewSQLStore(context.Background(), gw)
	require.NoError(t, err)

	err = store.MarkPrecomputed(context.Background(), 404)
	require.Error(t, err)
}

func TestSQLStore_Put_Upserts(t *testing.T) {
	gw := newSQLStoreTestGateway(t)
	store, err := NewSQLStore(context.Background(), gw)
	require.NoError(t, err)

	a := testAccount(30, time.Now().Add(time.Hour))
	require.NoError(t, store.Put(context.Background(), a))

	a.Name = "acme-renamed"
	require.NoError(t, store.Put(context.Background(), a))

	got, err := store.Get(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, "acme-renamed", got.Name)
}
