package account

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ActiveFiltersExpired(t *testing.T) {
	reg := NewRegistry()
	reg.Put(Account{ID: 1, Name: "alive", ExpiresAt: time.Now().Add(time.Hour)})
	reg.Put(Account{ID: 2, Name: "expired", ExpiresAt: time.Now().Add(-time.Hour)})

	active, err := reg.Active(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, ID(1), active[0].ID)
}

func TestRegistry_MarkPrecomputed(t *testing.T) {
	reg := NewRegistry()
	reg.Put(Account{ID: 1, RepositorySet: RepositorySet{UpdatesCount: 3}})

	require.NoError(t, reg.MarkPrecomputed(context.Background(), 1))

	got, err := reg.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, got.RepositorySet.Precomputed)
	assert.Equal(t, int64(4), got.RepositorySet.UpdatesCount)
}

func TestRegistry_GetMissing(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get(context.Background(), 99)
	require.Error(t, err)
}

func TestTeamTree_FlattenUnionsDescendantMembers(t *testing.T) {
	tree := TeamTree{
		1: {ID: 1, ParentID: 0, Members: []UserNodeID{"u1"}},
		2: {ID: 2, ParentID: 1, Members: []UserNodeID{"u2", "u1"}},
		3: {ID: 3, ParentID: 2, Members: []UserNodeID{"u3"}},
	}
	members := tree.Flatten(1)
	assert.ElementsMatch(t, []UserNodeID{"u1", "u2", "u3"}, members)
}
